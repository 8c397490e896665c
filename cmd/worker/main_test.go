package main

import (
	"testing"

	_ "github.com/agrohub/agrohub/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	main()
}
