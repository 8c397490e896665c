package branches

import (
	"context"
	"fmt"

	"github.com/agrohub/agrohub/internal/shared"
)

// Service exposes branch directory operations.
type Service struct {
	repo     Repository
	inferrer *Inferrer
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, inferrer: NewInferrer(DefaultAliases)}
}

// List returns every branch.
func (s *Service) List(ctx context.Context) ([]Branch, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("branches: list: %w", err)
	}
	return out, nil
}

// UserBranchIDs returns the explicit UserBranch set. The username heuristic
// never applies here.
func (s *Service) UserBranchIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := s.repo.IDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("branches: user %d: %w", userID, err)
	}
	return ids, nil
}

// Mine returns the caller's assigned branches plus a display-only guess when
// nothing is assigned.
func (s *Service) Mine(ctx context.Context, actor shared.Principal) (MyBranches, error) {
	assigned, err := s.repo.ForUser(ctx, actor.UserID)
	if err != nil {
		return MyBranches{}, fmt.Errorf("branches: mine: %w", err)
	}
	out := MyBranches{Branches: assigned}
	if out.Branches == nil {
		out.Branches = []Branch{}
	}
	if len(assigned) > 0 {
		return out, nil
	}
	all, err := s.repo.List(ctx)
	if err != nil {
		return MyBranches{}, fmt.Errorf("branches: mine: %w", err)
	}
	if b, ok := s.inferrer.Infer(actor.Login, all); ok {
		out.Inferred = &b
	}
	return out, nil
}

// Create adds a branch. Admin only.
func (s *Service) Create(ctx context.Context, actor shared.Principal, in CreateInput) (Branch, error) {
	if !actor.IsAdmin() {
		return Branch{}, shared.ErrPermissionDenied
	}
	b, err := s.repo.Create(ctx, in)
	if err != nil {
		return Branch{}, fmt.Errorf("branches: create: %w", err)
	}
	return b, nil
}

// Assign replaces a user's branch set. Admin only.
func (s *Service) Assign(ctx context.Context, actor shared.Principal, in AssignInput) error {
	if !actor.IsAdmin() {
		return shared.ErrPermissionDenied
	}
	for _, id := range in.BranchIDs {
		if _, err := s.repo.Get(ctx, id); err != nil {
			return fmt.Errorf("branches: assign: %w", err)
		}
	}
	if err := s.repo.ReplaceUserBranches(ctx, in.UserID, in.BranchIDs); err != nil {
		return fmt.Errorf("branches: assign: %w", err)
	}
	return nil
}
