package branches

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

var directory = []Branch{
	{ID: 1, Name: "Almaty Central", Code: strptr("ALA")},
	{ID: 2, Name: "Astana Mega"},
	{ID: 3, Name: "Head Office"},
	{ID: 4, Name: "Almaty Dostyk"},
	{ID: 5, Name: "Warehouse"},
}

func TestInferFromUsername(t *testing.T) {
	cases := []struct {
		login string
		want  int64
		ok    bool
	}{
		{"gm.astana", 2, true},
		{"ASTANA_MEGA_vm", 2, true},
		{"almatycentral.gm", 1, true},
		{"ala-cashier", 1, true},
		{"dostyk_manager", 4, true},
		{"hq.director", 3, true},
		{"sklad_vm", 5, true},
		{"john.doe", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.login, func(t *testing.T) {
			got, ok := InferFromUsername(tc.login, directory)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got.ID)
		})
	}
}

func TestInferPrefersLongestKeywordThenLowestID(t *testing.T) {
	// "almaty" matches branches 1 and 4; the tie goes to the lower id.
	got, ok := InferFromUsername("almaty.vm", directory)
	require.True(t, ok)
	require.Equal(t, int64(1), got.ID)

	got, ok = InferFromUsername("almaty_dostyk", directory)
	require.True(t, ok)
	require.Equal(t, int64(4), got.ID)
}

func TestKeywordsSkipShortWords(t *testing.T) {
	kws := NewInferrer(nil).Keywords(Branch{Name: "Mall of Asia", Code: strptr("X")})
	require.ElementsMatch(t, []string{"mallofasia", "mall", "asia"}, kws)
}
