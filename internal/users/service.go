package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrohub/agrohub/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, in CreateInput, passwordHash string) (int64, error)
	UpdateUser(ctx context.Context, id int64, in UpdateInput, passwordHash string) error
}

// PermissionCache drops cached capability lookups after a role change.
type PermissionCache interface {
	Invalidate(ctx context.Context, userIDs ...int64)
}

// Service handles user business logic. Every operation is admin only.
type Service struct {
	repo      RepositoryPort
	perms     PermissionCache
	audit     shared.AuditRecorder
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, perms PermissionCache, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, perms: perms, audit: audit, logger: logger, validator: shared.NewValidator()}
}

func requireAdmin(actor shared.Principal) error {
	if !actor.IsAdmin() {
		return shared.NewError(shared.ErrPermissionDenied, "administrator access required")
	}
	return nil
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context, actor shared.Principal) ([]User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, actor shared.Principal, id int64) (User, error) {
	if err := requireAdmin(actor); err != nil {
		return User{}, err
	}
	return s.repo.GetUser(ctx, id)
}

// CreateUser adds a local account.
func (s *Service) CreateUser(ctx context.Context, actor shared.Principal, in CreateInput) (User, error) {
	if err := requireAdmin(actor); err != nil {
		return User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Login = strings.TrimSpace(in.Login)
	in.Email = strings.TrimSpace(in.Email)
	if err := shared.ValidateStruct(s.validator, in); err != nil {
		return User{}, err
	}
	if in.Role == "" {
		in.Role = shared.RoleUser
	}
	in.Role = shared.ParseRole(string(in.Role))
	if !in.Role.Known() {
		return User{}, shared.Invalid("role", "unknown role")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	id, err := s.repo.CreateUser(ctx, in, string(hash))
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, "user.create", id, map[string]any{"login": in.Login, "role": in.Role})
	return s.repo.GetUser(ctx, id)
}

// UpdateUser changes role, active flag, profile or password.
func (s *Service) UpdateUser(ctx context.Context, actor shared.Principal, id int64, in UpdateInput) (User, error) {
	if err := requireAdmin(actor); err != nil {
		return User{}, err
	}
	if in.Empty() {
		return User{}, shared.NewError(shared.ErrValidation, "no updatable fields supplied")
	}
	if err := shared.ValidateStruct(s.validator, in); err != nil {
		return User{}, err
	}
	if in.Role != nil {
		role := shared.ParseRole(string(*in.Role))
		if !role.Known() {
			return User{}, shared.Invalid("role", "unknown role")
		}
		in.Role = &role
	}
	if id == actor.UserID && ((in.IsActive != nil && !*in.IsActive) || (in.Role != nil && *in.Role != shared.RoleAdmin)) {
		return User{}, shared.NewError(shared.ErrConflict, "administrators cannot demote or disable themselves")
	}
	var hash string
	if in.Password != nil {
		b, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		hash = string(b)
	}
	if err := s.repo.UpdateUser(ctx, id, in, hash); err != nil {
		return User{}, err
	}
	if in.Role != nil && s.perms != nil {
		s.perms.Invalidate(ctx, id)
	}
	meta := map[string]any{}
	if in.Role != nil {
		meta["role"] = *in.Role
	}
	if in.IsActive != nil {
		meta["is_active"] = *in.IsActive
	}
	if in.Password != nil {
		meta["password_reset"] = true
	}
	s.record(ctx, actor, "user.update", id, meta)
	return s.repo.GetUser(ctx, id)
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit user", slog.Int64("user_id", id), slog.Any("error", err))
	}
}
