package shared

import (
	"context"
	"errors"
	"time"
)

// IdempotencyStore persists processed request keys per module.
type IdempotencyStore struct {
	db execer
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(db execer) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = NewError(ErrConflict, "idempotent request already processed")

// CheckAndInsert ensures key uniqueness per module.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return Invalid("Idempotency-Key", "idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, time.Now())
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND module = $2`, key, module)
	return err
}
