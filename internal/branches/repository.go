package branches

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrohub/agrohub/internal/platform/db"
	"github.com/agrohub/agrohub/internal/shared"
)

// Repository defines persistence for branches and user links.
type Repository interface {
	List(ctx context.Context) ([]Branch, error)
	Get(ctx context.Context, id int64) (Branch, error)
	Create(ctx context.Context, in CreateInput) (Branch, error)
	ForUser(ctx context.Context, userID int64) ([]Branch, error)
	IDsForUser(ctx context.Context, userID int64) ([]int64, error)
	ReplaceUserBranches(ctx context.Context, userID int64, branchIDs []int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func scanBranches(rows pgx.Rows) ([]Branch, error) {
	defer rows.Close()
	var out []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Code, &b.Address); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) List(ctx context.Context) ([]Branch, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, code, address FROM branches ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	return scanBranches(rows)
}

func (r *repository) Get(ctx context.Context, id int64) (Branch, error) {
	var b Branch
	err := r.db.QueryRow(ctx, `SELECT id, name, code, address FROM branches WHERE id = $1`, id).Scan(&b.ID, &b.Name, &b.Code, &b.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return Branch{}, shared.NewError(shared.ErrNotFound, "branch %d not found", id)
	}
	return b, err
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Branch, error) {
	b := Branch{Name: in.Name, Code: in.Code, Address: in.Address}
	err := r.db.QueryRow(ctx, `INSERT INTO branches (name, code, address) VALUES ($1, $2, $3) RETURNING id`, in.Name, in.Code, in.Address).Scan(&b.ID)
	return b, err
}

func (r *repository) ForUser(ctx context.Context, userID int64) ([]Branch, error) {
	rows, err := r.db.Query(ctx, `SELECT b.id, b.name, b.code, b.address
FROM branches b
JOIN user_branches ub ON ub.branch_id = b.id
WHERE ub.user_id = $1
ORDER BY b.name, b.id`, userID)
	if err != nil {
		return nil, err
	}
	return scanBranches(rows)
}

func (r *repository) IDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT branch_id FROM user_branches WHERE user_id = $1 ORDER BY branch_id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *repository) ReplaceUserBranches(ctx context.Context, userID int64, branchIDs []int64) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_branches WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, id := range branchIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO user_branches (user_id, branch_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, id); err != nil {
				return err
			}
		}
		return nil
	})
}
