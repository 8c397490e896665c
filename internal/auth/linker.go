package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agrohub/agrohub/internal/shared"
)

// IdentityLinker maps identities proven by the legacy store onto local users.
type IdentityLinker struct {
	store  LocalUserStore
	logger *slog.Logger
}

// NewIdentityLinker constructs an IdentityLinker.
func NewIdentityLinker(store LocalUserStore, logger *slog.Logger) *IdentityLinker {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityLinker{store: store, logger: logger}
}

// ResolveOrCreateLocalUser returns the local user for ext. Matching order is
// legacy id, then email, then login; the first match is linked to the legacy
// account. Without a match a user is created with an empty password hash, so
// it can only sign in through the legacy store.
func (l *IdentityLinker) ResolveOrCreateLocalUser(ctx context.Context, ext ExternalIdentity) (User, error) {
	if ext.LegacyID <= 0 {
		return User{}, errors.New("auth: external identity without legacy id")
	}
	user, err := l.store.FindByLegacyID(ctx, ext.LegacyID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return User{}, err
	}

	if email := strings.TrimSpace(ext.Email); email != "" {
		found, err := l.store.FindByEmail(ctx, email)
		if !errors.Is(err, shared.ErrNotFound) {
			return l.link(ctx, ext, found, err)
		}
	}
	if login := strings.TrimSpace(ext.Login); login != "" {
		found, err := l.store.FindByLogin(ctx, login)
		if !errors.Is(err, shared.ErrNotFound) {
			return l.link(ctx, ext, found, err)
		}
	}

	role := ext.Role
	if !role.Known() {
		role = shared.RoleUser
	}
	legacyID := ext.LegacyID
	created, err := l.store.Create(ctx, User{
		Name:            firstNonEmpty(ext.Name, ext.Login),
		Login:           firstNonEmpty(ext.Login, ext.Email),
		Email:           strings.TrimSpace(ext.Email),
		Role:            role,
		IsActive:        true,
		LegacyAccountID: &legacyID,
	})
	if err != nil {
		if shared.IsUniqueViolation(err) {
			// Lost a race with a concurrent first login.
			return l.store.FindByLegacyID(ctx, ext.LegacyID)
		}
		return User{}, fmt.Errorf("auth: create local user: %w", err)
	}
	l.logger.Info("local user created from legacy account",
		slog.Int64("user_id", created.ID), slog.Int64("legacy_id", ext.LegacyID))
	return created, nil
}

func (l *IdentityLinker) link(ctx context.Context, ext ExternalIdentity, user User, err error) (User, error) {
	if err != nil {
		return User{}, err
	}
	if user.LegacyAccountID != nil && *user.LegacyAccountID != ext.LegacyID {
		return User{}, shared.NewError(shared.ErrConflict, "account is linked to a different legacy identity")
	}
	if user.LegacyAccountID == nil {
		if err := l.store.LinkLegacy(ctx, user.ID, ext.LegacyID); err != nil {
			return User{}, err
		}
		legacyID := ext.LegacyID
		user.LegacyAccountID = &legacyID
		l.logger.Info("legacy account linked", slog.Int64("user_id", user.ID), slog.Int64("legacy_id", ext.LegacyID))
	}
	return user, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
