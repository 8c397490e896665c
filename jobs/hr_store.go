package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGHRTaskStore implements HRTaskStore using PostgreSQL.
type PGHRTaskStore struct {
	pool *pgxpool.Pool
}

// NewPGHRTaskStore constructs the store.
func NewPGHRTaskStore(pool *pgxpool.Pool) *PGHRTaskStore {
	return &PGHRTaskStore{pool: pool}
}

// MarkNotified implements HRTaskStore.
func (s *PGHRTaskStore) MarkNotified(ctx context.Context, taskID int64, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE hr_tasks SET status = 'notified', notified_at = $2 WHERE id = $1 AND status = 'open'`, taskID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// BackfillPaid implements HRTaskStore.
func (s *PGHRTaskStore) BackfillPaid(ctx context.Context) ([]HRTask, error) {
	rows, err := s.pool.Query(ctx, `INSERT INTO hr_tasks (incident_id, title, amount)
SELECT i.id, 'Pay bonus for incident #' || i.id, COALESCE(i.paid_amount, i.amount)
FROM incidents i
WHERE i.status = 'paid'
  AND NOT EXISTS (SELECT 1 FROM hr_tasks t WHERE t.incident_id = i.id)
RETURNING id, incident_id, title, amount::float8, status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HRTask
	for rows.Next() {
		var t HRTask
		if err := rows.Scan(&t.ID, &t.IncidentID, &t.Title, &t.Amount, &t.Status); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var _ HRTaskStore = (*PGHRTaskStore)(nil)
