package incidents

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrohub/agrohub/internal/shared"
)

// Repository defines incident persistence.
type Repository interface {
	Create(ctx context.Context, in Incident) (int64, error)
	Get(ctx context.Context, id int64) (Incident, error)
	List(ctx context.Context, filter ListFilter) ([]Incident, error)
	Apply(ctx context.Context, change Change) error
	CreateHRTask(ctx context.Context, incidentID int64, title string, amount float64) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
	psql sq.StatementBuilderType
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

var incidentColumns = []string{
	"i.id", "i.reporter_id", "COALESCE(u.name, '')", "i.amount::float8", "i.reason", "i.evidence", "i.status",
	"i.notified_by", "i.notified_at", "i.confirmed_by", "i.confirmed_at",
	"i.paid_by", "i.paid_at", "i.paid_amount::float8", "i.created_at",
}

func scanIncident(row pgx.Row) (Incident, error) {
	var in Incident
	var status string
	err := row.Scan(&in.ID, &in.ReporterID, &in.ReporterName, &in.Amount, &in.Reason, &in.Evidence, &status,
		&in.NotifiedBy, &in.NotifiedAt, &in.ConfirmedBy, &in.ConfirmedAt,
		&in.PaidBy, &in.PaidAt, &in.PaidAmount, &in.CreatedAt)
	in.Status = Status(status)
	return in, err
}

func (r *PGRepository) selectIncidents() sq.SelectBuilder {
	return r.psql.Select(incidentColumns...).From("incidents i").LeftJoin("users u ON u.id = i.reporter_id")
}

// Create inserts a reported incident.
func (r *PGRepository) Create(ctx context.Context, in Incident) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO incidents (reporter_id, amount, reason, evidence, status) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		in.ReporterID, in.Amount, in.Reason, in.Evidence, string(StatusReported)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("incidents: create: %w", err)
	}
	return id, nil
}

// Get fetches an incident by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (Incident, error) {
	sqlStr, args, err := r.selectIncidents().Where(sq.Eq{"i.id": id}).ToSql()
	if err != nil {
		return Incident{}, err
	}
	in, err := scanIncident(r.pool.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Incident{}, shared.NewError(shared.ErrNotFound, "incident not found")
		}
		return Incident{}, fmt.Errorf("incidents: get: %w", err)
	}
	return in, nil
}

// List returns incidents newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Incident, error) {
	q := r.selectIncidents().OrderBy("i.created_at DESC", "i.id DESC")
	if filter.ReporterID > 0 {
		q = q.Where(sq.Eq{"i.reporter_id": filter.ReporterID})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"i.status": string(filter.Status)})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("incidents: list: %w", err)
	}
	defer rows.Close()
	out := []Incident{}
	for rows.Next() {
		in, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		// Evidence is only returned by Get.
		in.Evidence = nil
		out = append(out, in)
	}
	return out, rows.Err()
}

// stampColumns maps a target status to its actor and time columns.
var stampColumns = map[Status][2]string{
	StatusNotified:  {"notified_by", "notified_at"},
	StatusConfirmed: {"confirmed_by", "confirmed_at"},
	StatusPaid:      {"paid_by", "paid_at"},
}

// Apply writes a status change.
func (r *PGRepository) Apply(ctx context.Context, change Change) error {
	cols, ok := stampColumns[change.To]
	if !ok {
		return fmt.Errorf("incidents: no stamp columns for status %q", change.To)
	}
	q := r.psql.Update("incidents").
		Set("status", string(change.To)).
		Set(cols[0], change.ActorID).
		Set(cols[1], change.At).
		Where(sq.Eq{"id": change.ID})
	if change.PaidAmount != nil {
		q = q.Set("paid_amount", *change.PaidAmount)
	}
	from := []string{}
	for _, st := range Before(change.To, change.Strict) {
		from = append(from, string(st))
	}
	q = q.Where(sq.Eq{"status": from})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("incidents: apply: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewError(shared.ErrConflict, "incident status changed concurrently")
	}
	return nil
}

// CreateHRTask inserts the downstream payout task.
func (r *PGRepository) CreateHRTask(ctx context.Context, incidentID int64, title string, amount float64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO hr_tasks (incident_id, title, amount) VALUES ($1, $2, $3) RETURNING id`,
		incidentID, title, amount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("incidents: create hr task: %w", err)
	}
	return id, nil
}

var _ Repository = (*PGRepository)(nil)
