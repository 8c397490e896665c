package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrohub/agrohub/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
	psql sq.StatementBuilderType
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

const userColumns = `id, name, login, email, role, is_active, legacy_account_id, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var user User
	var role string
	if err := row.Scan(&user.ID, &user.Name, &user.Login, &user.Email, &role, &user.IsActive, &user.LegacyAccountID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.Role = shared.ParseRole(role)
	return user, nil
}

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches a user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.NewError(shared.ErrNotFound, "user not found")
		}
		return User{}, err
	}
	return user, nil
}

// CreateUser inserts a user with a bcrypt password hash.
func (r *Repository) CreateUser(ctx context.Context, in CreateInput, passwordHash string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO users (name, login, email, password_hash, role, is_active) VALUES ($1, $2, $3, $4, $5, TRUE) RETURNING id`,
		in.Name, in.Login, in.Email, passwordHash, string(in.Role)).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return 0, shared.NewError(shared.ErrConflict, "login already taken")
		}
		return 0, fmt.Errorf("users: create: %w", err)
	}
	return id, nil
}

// UpdateUser applies the supplied fields.
func (r *Repository) UpdateUser(ctx context.Context, id int64, in UpdateInput, passwordHash string) error {
	set := map[string]any{"updated_at": time.Now().UTC()}
	if in.Name != nil {
		set["name"] = *in.Name
	}
	if in.Email != nil {
		set["email"] = *in.Email
	}
	if in.Role != nil {
		set["role"] = string(*in.Role)
	}
	if in.IsActive != nil {
		set["is_active"] = *in.IsActive
	}
	if passwordHash != "" {
		set["password_hash"] = passwordHash
	}
	sqlStr, args, err := r.psql.Update("users").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("users: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewError(shared.ErrNotFound, "user not found")
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
