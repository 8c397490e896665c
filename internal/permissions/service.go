package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/agrohub/agrohub/internal/shared"
)

// UpdateInput sets role_type and every flag for one user.
type UpdateInput struct {
	UserID   int64    `json:"user_id"`
	RoleType RoleType `json:"role_type"`
	Capabilities
}

// Service implements the admin permission management actions.
type Service struct {
	repo     Repository
	resolver *Resolver
	audit    shared.AuditRecorder
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, resolver *Resolver, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, audit: audit, logger: logger}
}

func requireAdmin(actor shared.Principal) error {
	if !actor.IsAdmin() {
		return shared.NewError(shared.ErrPermissionDenied, "administrator role required")
	}
	return nil
}

// ListUsers returns every user with stored and effective capabilities.
func (s *Service) ListUsers(ctx context.Context, actor shared.Principal) ([]UserPermissions, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("permissions: list users: %w", err)
	}
	out := make([]UserPermissions, 0, len(rows))
	for _, row := range rows {
		entry := UserPermissions{UserRow: row, RoleType: RoleTypeNone, Effective: DefaultFor(row.Role)}
		if row.Permission != nil {
			entry.RoleType = row.Permission.RoleType
			entry.Effective = row.Permission.Capabilities
			entry.Custom = true
		}
		out = append(out, entry)
	}
	return out, nil
}

// UpdatePermissions overwrites role_type and all flags for a user.
func (s *Service) UpdatePermissions(ctx context.Context, actor shared.Principal, in UpdateInput) (Record, error) {
	if err := requireAdmin(actor); err != nil {
		return Record{}, err
	}
	if in.UserID <= 0 {
		return Record{}, shared.MissingField("user_id")
	}
	if in.RoleType == "" {
		in.RoleType = RoleTypeNone
	}
	if !in.RoleType.Valid() {
		return Record{}, shared.Invalid("role_type", "unknown role_type "+strconv.Quote(string(in.RoleType)))
	}
	if err := s.ensureUser(ctx, in.UserID); err != nil {
		return Record{}, err
	}
	rec := Record{UserID: in.UserID, RoleType: in.RoleType, Capabilities: in.Capabilities, UpdatedBy: &actor.UserID}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("permissions: update: %w", err)
	}
	s.resolver.Invalidate(ctx, in.UserID)
	s.record(ctx, actor, "violation_permissions.update", in.UserID, map[string]any{"role_type": rec.RoleType, "permissions": rec.Capabilities})
	return rec, nil
}

// ApplyPreset overwrites a user's row with a preset bundle.
func (s *Service) ApplyPreset(ctx context.Context, actor shared.Principal, userID int64, roleType RoleType) (Record, error) {
	if err := requireAdmin(actor); err != nil {
		return Record{}, err
	}
	if userID <= 0 {
		return Record{}, shared.MissingField("user_id")
	}
	preset, ok := PresetFor(roleType)
	if !ok {
		return Record{}, shared.Invalid("preset", "unknown preset "+strconv.Quote(string(roleType)))
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return Record{}, err
	}
	rec := Record{UserID: userID, RoleType: preset.RoleType, Capabilities: preset.Capabilities, UpdatedBy: &actor.UserID}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("permissions: apply preset: %w", err)
	}
	s.resolver.Invalidate(ctx, userID)
	s.record(ctx, actor, "violation_permissions.preset", userID, map[string]any{"preset": preset.RoleType})
	return rec, nil
}

// BulkSetVMPermissions applies the vm preset to userIDs in one transaction.
// An empty list targets every active user whose global role is user.
func (s *Service) BulkSetVMPermissions(ctx context.Context, actor shared.Principal, userIDs []int64) ([]int64, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		ids, err := s.repo.ActiveUserIDsByRole(ctx, shared.RoleUser)
		if err != nil {
			return nil, fmt.Errorf("permissions: bulk vm: list users: %w", err)
		}
		userIDs = ids
	}
	userIDs = dedupe(userIDs)
	if len(userIDs) == 0 {
		return []int64{}, nil
	}
	preset, _ := PresetFor(RoleTypeVM)
	recs := make([]Record, len(userIDs))
	for i, id := range userIDs {
		if id <= 0 {
			return nil, shared.Invalid("user_ids", "user ids must be positive")
		}
		recs[i] = Record{UserID: id, RoleType: preset.RoleType, Capabilities: preset.Capabilities, UpdatedBy: &actor.UserID}
	}
	if err := s.repo.UpsertMany(ctx, recs); err != nil {
		if shared.IsForeignKeyViolation(err) {
			return nil, shared.Invalid("user_ids", "unknown user id")
		}
		return nil, fmt.Errorf("permissions: bulk vm: %w", err)
	}
	s.resolver.Invalidate(ctx, userIDs...)
	for _, id := range userIDs {
		s.record(ctx, actor, "violation_permissions.preset", id, map[string]any{"preset": RoleTypeVM, "bulk": true})
	}
	return userIDs, nil
}

// Presets lists the preset bundles.
func (s *Service) Presets(actor shared.Principal) ([]Preset, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return Presets(), nil
}

func (s *Service) ensureUser(ctx context.Context, userID int64) error {
	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("permissions: check user: %w", err)
	}
	if !ok {
		return shared.NewError(shared.ErrNotFound, "user %d not found", userID)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit permission change", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
