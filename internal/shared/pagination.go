package shared

import "strconv"

const (
	// DefaultPageLimit applies when the client sends no limit.
	DefaultPageLimit = 50
	// MaxPageLimit caps client supplied limits.
	MaxPageLimit = 500
)

// Page is a limit/offset window.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ParsePage reads limit and offset query values, applying defaults and caps.
func ParsePage(rawLimit, rawOffset string) Page {
	limit, err := strconv.Atoi(rawLimit)
	if err != nil || limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	offset, err := strconv.Atoi(rawOffset)
	if err != nil || offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
