package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrohub/agrohub/internal/shared"
)

// UserStore reads primary user accounts. Lookups return shared.ErrNotFound
// when no row matches.
type UserStore interface {
	FindByLogin(ctx context.Context, login string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
}

// LocalUserStore is what IdentityLinker needs from the primary store.
type LocalUserStore interface {
	FindByLegacyID(ctx context.Context, legacyID int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByLogin(ctx context.Context, login string) (User, error)
	LinkLegacy(ctx context.Context, userID, legacyID int64) error
	Create(ctx context.Context, user User) (User, error)
}

// LegacyStore reads the legacy accounts database.
type LegacyStore interface {
	FindAccount(ctx context.Context, login string) (LegacyAccount, error)
}

// PGUserStore implements UserStore and LocalUserStore using PostgreSQL.
type PGUserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore constructs a PostgreSQL user store.
func NewUserStore(pool *pgxpool.Pool) *PGUserStore {
	return &PGUserStore{pool: pool}
}

const userColumns = `id, name, login, email, password_hash, role, is_active, legacy_account_id, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Login, &u.Email, &u.PasswordHash, &role, &u.IsActive, &u.LegacyAccountID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	u.Role = shared.ParseRole(role)
	return u, nil
}

// FindByLogin matches login or email, case-insensitively.
func (s *PGUserStore) FindByLogin(ctx context.Context, login string) (User, error) {
	login = strings.TrimSpace(login)
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(login) = LOWER($1) OR (email <> '' AND LOWER(email) = LOWER($1)) ORDER BY (LOWER(login) = LOWER($1)) DESC, id LIMIT 1`, login))
}

// FindByID fetches a user by id.
func (s *PGUserStore) FindByID(ctx context.Context, id int64) (User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByLegacyID fetches the user linked to a legacy account.
func (s *PGUserStore) FindByLegacyID(ctx context.Context, legacyID int64) (User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE legacy_account_id = $1 ORDER BY id LIMIT 1`, legacyID))
}

// FindByEmail fetches a user by email.
func (s *PGUserStore) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email <> '' AND LOWER(email) = LOWER($1) ORDER BY id LIMIT 1`, strings.TrimSpace(email)))
}

// LinkLegacy records the legacy account id on a user.
func (s *PGUserStore) LinkLegacy(ctx context.Context, userID, legacyID int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET legacy_account_id = $2, updated_at = NOW() WHERE id = $1`, userID, legacyID)
	if err != nil {
		return fmt.Errorf("auth: link legacy account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Create inserts a user and returns the stored row.
func (s *PGUserStore) Create(ctx context.Context, user User) (User, error) {
	return scanUser(s.pool.QueryRow(ctx, `INSERT INTO users (name, login, email, password_hash, role, is_active, legacy_account_id)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+userColumns,
		user.Name, user.Login, user.Email, user.PasswordHash, string(user.Role), user.IsActive, user.LegacyAccountID))
}

// PGLegacyStore reads the legacy accounts table.
type PGLegacyStore struct {
	pool *pgxpool.Pool
}

// NewLegacyStore constructs the legacy store.
func NewLegacyStore(pool *pgxpool.Pool) *PGLegacyStore {
	return &PGLegacyStore{pool: pool}
}

// FindAccount matches username or email.
func (s *PGLegacyStore) FindAccount(ctx context.Context, login string) (LegacyAccount, error) {
	var acc LegacyAccount
	err := s.pool.QueryRow(ctx, `SELECT id, username, COALESCE(email, ''), password, COALESCE(role, '') FROM accounts WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1) ORDER BY id LIMIT 1`, strings.TrimSpace(login)).
		Scan(&acc.ID, &acc.Username, &acc.Email, &acc.PasswordHash, &acc.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LegacyAccount{}, shared.ErrNotFound
		}
		return LegacyAccount{}, fmt.Errorf("auth: legacy lookup: %w", err)
	}
	return acc, nil
}

var (
	_ UserStore      = (*PGUserStore)(nil)
	_ LocalUserStore = (*PGUserStore)(nil)
	_ LegacyStore    = (*PGLegacyStore)(nil)
)
