package violations

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/require"

	"github.com/agrohub/agrohub/internal/permissions"
)

func TestResolveScope(t *testing.T) {
	cases := []struct {
		name      string
		caps      permissions.Capabilities
		requested []int64
		branches  []int64
		want      Scope
	}{
		{"no capability", permissions.Capabilities{}, nil, nil, Scope{Kind: ScopeNone}},
		{"no capability ignores branch filter", permissions.Capabilities{}, []int64{3}, nil, Scope{Kind: ScopeNone}},
		{"branch filter first", permissions.Capabilities{ViewOwn: true}, []int64{3, 4}, nil, Scope{Kind: ScopeRequestedBranches, BranchIDs: []int64{3, 4}}},
		{"view all", permissions.Capabilities{ViewAll: true, ViewOwn: true}, nil, nil, Scope{Kind: ScopeAll}},
		{"view branch", permissions.Capabilities{ViewBranch: true}, nil, []int64{7}, Scope{Kind: ScopeBranches, BranchIDs: []int64{7}}},
		{"view branch without links", permissions.Capabilities{ViewBranch: true}, nil, nil, Scope{Kind: ScopeBranches}},
		{"view own", permissions.Capabilities{ViewOwn: true, Create: true}, nil, nil, Scope{Kind: ScopeOwn, UserID: 42}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveScope(tc.caps, 42, tc.requested, tc.branches)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestScopeEmptyAndAllows(t *testing.T) {
	require.True(t, Scope{Kind: ScopeNone}.Empty())
	require.True(t, Scope{Kind: ScopeBranches}.Empty())
	require.False(t, Scope{Kind: ScopeOwn, UserID: 1}.Empty())

	v := Violation{BranchID: 5, UserID: 9}
	require.True(t, Scope{Kind: ScopeAll}.Allows(v))
	require.True(t, Scope{Kind: ScopeBranches, BranchIDs: []int64{1, 5}}.Allows(v))
	require.False(t, Scope{Kind: ScopeBranches, BranchIDs: []int64{1}}.Allows(v))
	require.True(t, Scope{Kind: ScopeOwn, UserID: 9}.Allows(v))
	require.False(t, Scope{Kind: ScopeOwn, UserID: 8}.Allows(v))
	require.False(t, Scope{Kind: ScopeNone}.Allows(v))

	require.True(t, Scope{Kind: ScopeRequestedBranches}.Bypass())
	require.Equal(t, "requested_branches", ScopeRequestedBranches.String())
}

func TestResolveRecordScopeIgnoresFilter(t *testing.T) {
	got := ResolveRecordScope(permissions.Capabilities{ViewOwn: true}, 2, nil)
	require.Equal(t, ScopeOwn, got.Kind)
}

func TestScopePredicateSQL(t *testing.T) {
	cases := []struct {
		scope Scope
		sql   string
	}{
		{Scope{Kind: ScopeNone}, "FALSE"},
		{Scope{Kind: ScopeBranches}, "FALSE"},
		{Scope{Kind: ScopeOwn, UserID: 3}, "v.user_id = $1"},
	}
	for _, tc := range cases {
		raw, _, err := scopePredicate(tc.scope).ToSql()
		require.NoError(t, err)
		sqlStr, err := sq.Dollar.ReplacePlaceholders(raw)
		require.NoError(t, err)
		require.Equal(t, tc.sql, sqlStr)
	}
}

func TestGuards(t *testing.T) {
	own := Violation{UserID: 2}
	other := Violation{UserID: 3}

	require.True(t, CanEdit(permissions.Capabilities{EditOwn: true}, 2, own))
	require.False(t, CanEdit(permissions.Capabilities{EditOwn: true}, 2, other))
	require.True(t, CanEdit(permissions.Capabilities{EditAll: true}, 2, other))
	require.True(t, CanEdit(permissions.Capabilities{ApplySanctions: true}, 2, other))

	require.True(t, CanAttachPhoto(permissions.Capabilities{Create: true}, 2, own))
	require.False(t, CanAttachPhoto(permissions.Capabilities{Create: true}, 2, other))

	require.False(t, CanDelete(permissions.Capabilities{EditAll: true}))
	require.True(t, CanDelete(permissions.Capabilities{Delete: true}))
}

func TestRedact(t *testing.T) {
	v := sampleViolation(1, 3)
	v.setPhotos(v.Photos)

	hidden := redact(v, permissions.Capabilities{ViewOwn: true}, 2)
	require.Empty(t, hidden.Photos)
	require.Empty(t, hidden.PhotoURL)
	require.Nil(t, hidden.FineAmount)
	require.Nil(t, hidden.Fullname)

	shown := redact(v, permissions.Capabilities{ViewSanctions: true, ViewPhotos: true}, 2)
	require.Len(t, shown.Photos, 1)
	require.NotNil(t, shown.FineAmount)

	editor := redact(v, permissions.Capabilities{EditOwn: true}, 3)
	require.NotNil(t, editor.FineAmount)
}
