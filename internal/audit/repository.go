package audit

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs.
type Repository interface {
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
}

// PGRepository implements Repository over PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
	psql sq.StatementBuilderType
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func filterPredicate(f TimelineFilters) sq.And {
	pred := sq.And{}
	if !f.From.IsZero() {
		pred = append(pred, sq.GtOrEq{"a.occurred_at": f.From})
	}
	if !f.To.IsZero() {
		pred = append(pred, sq.Lt{"a.occurred_at": f.To})
	}
	if f.ActorID > 0 {
		pred = append(pred, sq.Eq{"a.actor_id": f.ActorID})
	}
	if f.Entity != "" {
		pred = append(pred, sq.Eq{"a.entity": f.Entity})
	}
	if f.EntityID != "" {
		pred = append(pred, sq.Eq{"a.entity_id": f.EntityID})
	}
	if f.Action != "" {
		pred = append(pred, sq.Eq{"a.action": f.Action})
	}
	return pred
}

// Window returns rows newest first. limit <= 0 returns every match.
func (r *PGRepository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	q := r.psql.Select("a.id", "a.occurred_at", "a.actor_id", "COALESCE(u.login, '')", "a.action", "a.entity", "a.entity_id", "a.meta").
		From("audit_logs a").
		LeftJoin("users u ON u.id = a.actor_id").
		Where(filterPredicate(filters)).
		OrderBy("a.occurred_at DESC", "a.id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit)).Offset(uint64(offset))
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	defer rows.Close()
	out := []TimelineRow{}
	for rows.Next() {
		var row TimelineRow
		var meta []byte
		if err := rows.Scan(&row.ID, &row.At, &row.ActorID, &row.ActorLogin, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 && string(meta) != "null" {
			row.Meta = meta
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
