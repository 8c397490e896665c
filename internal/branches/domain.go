// Package branches holds the branch directory and user to branch links.
package branches

// Branch is a physical retail location.
type Branch struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Code    *string `json:"code,omitempty"`
	Address *string `json:"address,omitempty"`
}

// CreateInput is the payload for creating a branch.
type CreateInput struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Code    *string `json:"code" validate:"omitempty,max=32"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

// AssignInput replaces the branch set of a user.
type AssignInput struct {
	UserID    int64   `json:"user_id" validate:"required,gt=0"`
	BranchIDs []int64 `json:"branch_ids" validate:"dive,gt=0"`
}

// MyBranches is returned by the /mine endpoint. Inferred is a display hint
// derived from the login name and is not an assignment.
type MyBranches struct {
	Branches []Branch `json:"branches"`
	Inferred *Branch  `json:"inferred,omitempty"`
}
