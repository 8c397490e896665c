package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrohub/agrohub/internal/platform/db"
	"github.com/agrohub/agrohub/internal/shared"
)

// Lookup fetches a single override row. shared.ErrNotFound means no row.
type Lookup interface {
	Get(ctx context.Context, userID int64) (Record, error)
}

// Repository defines persistence for override rows.
type Repository interface {
	Lookup
	Upsert(ctx context.Context, rec Record) error
	UpsertMany(ctx context.Context, recs []Record) error
	ListUsers(ctx context.Context) ([]UserRow, error)
	ActiveUserIDsByRole(ctx context.Context, role shared.Role) ([]int64, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var selectColumns = "user_id, role_type, " + strings.Join(Columns, ", ") + ", updated_by, updated_at"

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var roleType string
	targets := append([]any{&rec.UserID, &roleType}, rec.Capabilities.Targets()...)
	targets = append(targets, &rec.UpdatedBy, &rec.UpdatedAt)
	if err := row.Scan(targets...); err != nil {
		return Record{}, err
	}
	rec.RoleType = RoleType(roleType)
	return rec, nil
}

// Get fetches the override row for userID.
func (r *PGRepository) Get(ctx context.Context, userID int64) (Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM violation_user_permissions WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, shared.ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

var upsertSQL = func() string {
	placeholders := make([]string, 0, len(Columns)+3)
	updates := make([]string, 0, len(Columns)+3)
	for i := 0; i < len(Columns)+3; i++ {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}
	cols := append([]string{"role_type"}, Columns...)
	cols = append(cols, "updated_by")
	for _, c := range cols {
		updates = append(updates, c+" = EXCLUDED."+c)
	}
	updates = append(updates, "updated_at = NOW()")
	return `INSERT INTO violation_user_permissions (user_id, ` + strings.Join(cols, ", ") + `, updated_at)
VALUES (` + strings.Join(placeholders, ", ") + `, NOW())
ON CONFLICT (user_id) DO UPDATE SET ` + strings.Join(updates, ", ")
}()

func upsertArgs(rec Record) []any {
	args := append([]any{rec.UserID, string(rec.RoleType)}, rec.Capabilities.Values()...)
	return append(args, rec.UpdatedBy)
}

func upsert(ctx context.Context, q db.Querier, rec Record) error {
	_, err := q.Exec(ctx, upsertSQL, upsertArgs(rec)...)
	return err
}

// Upsert writes role_type and all flags for one user in a single statement.
func (r *PGRepository) Upsert(ctx context.Context, rec Record) error {
	return upsert(ctx, r.pool, rec)
}

// UpsertMany writes every record inside one transaction.
func (r *PGRepository) UpsertMany(ctx context.Context, recs []Record) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := upsert(ctx, tx, rec); err != nil {
				return fmt.Errorf("upsert user %d: %w", rec.UserID, err)
			}
		}
		return nil
	})
}

// ListUsers returns every user with their optional override row.
func (r *PGRepository) ListUsers(ctx context.Context) ([]UserRow, error) {
	permCols := make([]string, len(Columns))
	for i, c := range Columns {
		permCols[i] = "p." + c
	}
	rows, err := r.pool.Query(ctx, `SELECT u.id, u.name, u.login, u.email, u.role, u.is_active,
       p.user_id, COALESCE(p.role_type, ''), `+strings.Join(coalesceFalse(permCols), ", ")+`, p.updated_by, COALESCE(p.updated_at, NOW())
FROM users u
LEFT JOIN violation_user_permissions p ON p.user_id = u.id
ORDER BY u.name, u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserRow
	for rows.Next() {
		var u UserRow
		var role, roleType string
		var permUserID *int64
		var rec Record
		targets := []any{&u.ID, &u.Name, &u.Login, &u.Email, &role, &u.IsActive, &permUserID, &roleType}
		targets = append(targets, rec.Capabilities.Targets()...)
		targets = append(targets, &rec.UpdatedBy, &rec.UpdatedAt)
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		u.Role = shared.ParseRole(role)
		if permUserID != nil {
			rec.UserID = *permUserID
			rec.RoleType = RoleType(roleType)
			u.Permission = &rec
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func coalesceFalse(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = "COALESCE(" + c + ", FALSE)"
	}
	return out
}

// ActiveUserIDsByRole lists active users holding the given global role.
func (r *PGRepository) ActiveUserIDsByRole(ctx context.Context, role shared.Role) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE is_active AND role = $1 ORDER BY id`, string(role))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// UserExists reports whether a user row exists.
func (r *PGRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

var _ Repository = (*PGRepository)(nil)
