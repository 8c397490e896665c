package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/agrohub/agrohub/internal/shared"
)

// Resolver computes effective capabilities: the stored override row when one
// exists, otherwise the default bundle of the global role.
type Resolver struct {
	lookup Lookup
	cache  Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewResolver constructs a Resolver. A nil cache disables caching.
func NewResolver(lookup Lookup, cache Cache, logger *slog.Logger) *Resolver {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lookup: lookup, cache: cache, logger: logger}
}

// Resolve returns the capability record for a user.
func (r *Resolver) Resolve(ctx context.Context, userID int64, role shared.Role) (Capabilities, error) {
	entry, err := r.entry(ctx, userID)
	if err != nil {
		return Capabilities{}, err
	}
	if entry.Found {
		return entry.Record.Capabilities, nil
	}
	return DefaultFor(role), nil
}

// Stored returns the override row for a user, if any.
func (r *Resolver) Stored(ctx context.Context, userID int64) (*Record, error) {
	entry, err := r.entry(ctx, userID)
	if err != nil || !entry.Found {
		return nil, err
	}
	rec := entry.Record
	return &rec, nil
}

func (r *Resolver) entry(ctx context.Context, userID int64) (Entry, error) {
	if cached, ok, err := r.cache.Get(ctx, userID); err != nil {
		r.logger.Warn("permission cache get", slog.Int64("user_id", userID), slog.Any("error", err))
	} else if ok {
		return cached, nil
	}

	v, err, _ := r.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		rec, err := r.lookup.Get(ctx, userID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			return Entry{}, nil
		case err != nil:
			return Entry{}, fmt.Errorf("permissions: lookup user %d: %w", userID, err)
		}
		return Entry{Found: true, Record: rec}, nil
	})
	if err != nil {
		return Entry{}, err
	}
	entry := v.(Entry)
	if err := r.cache.Set(ctx, userID, entry); err != nil {
		r.logger.Warn("permission cache set", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	return entry, nil
}

// Invalidate evicts cached lookups for the given users.
func (r *Resolver) Invalidate(ctx context.Context, userIDs ...int64) {
	if err := r.cache.Delete(ctx, userIDs...); err != nil {
		r.logger.Warn("permission cache invalidate", slog.Any("error", err))
	}
}
