package violations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContainsPatternEscapesWildcards(t *testing.T) {
	require.Equal(t, `%F-7%`, containsPattern("F-7"))
	require.Equal(t, `%100\%%`, containsPattern("100%"))
	require.Equal(t, `%gate\_3%`, containsPattern("gate_3"))
	require.Equal(t, `%a\\b%`, containsPattern(`a\b`))
}

func TestFilteredSearchColumns(t *testing.T) {
	r := NewRepository(nil)
	scope := Scope{Kind: ScopeAll}

	sqlStr, args, err := r.filtered(r.psql.Select("COUNT(*)"), scope, ListFilter{Search: "%"}).ToSql()
	require.NoError(t, err)
	require.NotContains(t, sqlStr, "v.fullname")
	require.Contains(t, sqlStr, "v.fact_identifier ILIKE $1")
	require.Len(t, args, 5)
	require.Equal(t, `%\%%`, args[0])

	sqlStr, args, err = r.filtered(r.psql.Select("COUNT(*)"), scope, ListFilter{Search: "ivanov", SearchSanctions: true}).ToSql()
	require.NoError(t, err)
	require.Contains(t, sqlStr, "v.fullname ILIKE $6")
	require.Len(t, args, 6)
}
