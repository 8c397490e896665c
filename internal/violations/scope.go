package violations

import "github.com/agrohub/agrohub/internal/permissions"

// ScopeKind identifies which list rule applied.
type ScopeKind int

const (
	// ScopeNone returns nothing.
	ScopeNone ScopeKind = iota
	// ScopeRequestedBranches honours the caller's branch_ids filter as is.
	ScopeRequestedBranches
	// ScopeAll applies no ownership filter.
	ScopeAll
	// ScopeBranches restricts to the caller's UserBranch set.
	ScopeBranches
	// ScopeOwn restricts to violations the caller created.
	ScopeOwn
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeRequestedBranches:
		return "requested_branches"
	case ScopeAll:
		return "all"
	case ScopeBranches:
		return "branches"
	case ScopeOwn:
		return "own"
	default:
		return "none"
	}
}

// Scope is the row filter applied to violation reads.
type Scope struct {
	Kind      ScopeKind
	BranchIDs []int64
	UserID    int64
}

// Bypass reports whether the caller's branch filter replaced ownership
// scoping. See ResolveScope.
func (s Scope) Bypass() bool { return s.Kind == ScopeRequestedBranches }

// Empty reports whether the scope can match no row at all.
func (s Scope) Empty() bool {
	switch s.Kind {
	case ScopeNone:
		return true
	case ScopeBranches, ScopeRequestedBranches:
		return len(s.BranchIDs) == 0
	}
	return false
}

// Allows reports whether v is inside the scope.
func (s Scope) Allows(v Violation) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeBranches, ScopeRequestedBranches:
		for _, id := range s.BranchIDs {
			if id == v.BranchID {
				return true
			}
		}
		return false
	case ScopeOwn:
		return v.UserID == s.UserID
	default:
		return false
	}
}

func canView(caps permissions.Capabilities) bool {
	return caps.ViewAll || caps.ViewBranch || caps.ViewOwn
}

// ResolveScope picks the list filter, first match wins:
//
//  1. explicit branch ids from the request are honoured as given
//  2. can_view_all sees everything
//  3. can_view_branch sees the UserBranch set; an empty set sees nothing
//  4. can_view_own sees own reports
//  5. anything else sees nothing
//
// Rule 1 lets a can_view_own caller read other users' reports by naming a
// branch. This is a known authorization gap kept for compatibility; callers
// log it through Scope.Bypass. A caller with no view capability at all still
// gets nothing.
func ResolveScope(caps permissions.Capabilities, userID int64, requested, userBranchIDs []int64) Scope {
	if !canView(caps) {
		return Scope{Kind: ScopeNone}
	}
	if len(requested) > 0 {
		return Scope{Kind: ScopeRequestedBranches, BranchIDs: requested}
	}
	if caps.ViewAll {
		return Scope{Kind: ScopeAll}
	}
	if caps.ViewBranch {
		return Scope{Kind: ScopeBranches, BranchIDs: userBranchIDs}
	}
	return Scope{Kind: ScopeOwn, UserID: userID}
}

// ResolveRecordScope is ResolveScope for single-record reads, where no branch
// filter is accepted.
func ResolveRecordScope(caps permissions.Capabilities, userID int64, userBranchIDs []int64) Scope {
	return ResolveScope(caps, userID, nil, userBranchIDs)
}
