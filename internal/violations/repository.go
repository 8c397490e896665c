package violations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrohub/agrohub/internal/platform/db"
	"github.com/agrohub/agrohub/internal/shared"
)

// Repository defines persistence for violations and their photos.
type Repository interface {
	List(ctx context.Context, scope Scope, filter ListFilter) ([]Violation, int, error)
	Get(ctx context.Context, id int64) (Violation, error)
	Create(ctx context.Context, v Violation) (int64, error)
	Update(ctx context.Context, id int64, in UpdateInput) error
	Delete(ctx context.Context, id int64) ([]Photo, error)
	AddPhoto(ctx context.Context, p Photo) (Photo, error)
	Stats(ctx context.Context, scope Scope, filter ListFilter) (Stats, error)
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

var violationColumns = []string{
	"v.id", "v.branch_id", "COALESCE(b.name, '')", "v.user_id", "COALESCE(u.name, '')",
	"v.processing_date", "v.processed_date", "v.dvr", "v.camera", "v.incident_location",
	"v.category", "v.category_comment", "v.fact_identifier", "v.progress",
	"v.responsibility", "v.fullname", "v.fine_amount::float8", "v.comment",
	"v.created_at", "v.updated_at",
}

func scanViolation(row pgx.Row) (Violation, error) {
	var v Violation
	var progress string
	err := row.Scan(
		&v.ID, &v.BranchID, &v.BranchName, &v.UserID, &v.AuthorName,
		&v.ProcessingDate, &v.ProcessedDate, &v.DVR, &v.Camera, &v.IncidentLocation,
		&v.Category, &v.CategoryComment, &v.FactIdentifier, &progress,
		&v.Responsibility, &v.Fullname, &v.FineAmount, &v.Comment,
		&v.CreatedAt, &v.UpdatedAt,
	)
	v.Progress = Progress(progress)
	return v, err
}

// scopePredicate turns a Scope into a WHERE clause. nil means unrestricted.
func scopePredicate(scope Scope) sq.Sqlizer {
	switch scope.Kind {
	case ScopeAll:
		return nil
	case ScopeBranches, ScopeRequestedBranches:
		if len(scope.BranchIDs) == 0 {
			return sq.Expr("FALSE")
		}
		return sq.Eq{"v.branch_id": scope.BranchIDs}
	case ScopeOwn:
		return sq.Eq{"v.user_id": scope.UserID}
	default:
		return sq.Expr("FALSE")
	}
}

func (r *PGRepository) filtered(base sq.SelectBuilder, scope Scope, filter ListFilter) sq.SelectBuilder {
	base = base.From("violations v").
		LeftJoin("branches b ON b.id = v.branch_id").
		LeftJoin("users u ON u.id = v.user_id")
	if pred := scopePredicate(scope); pred != nil {
		base = base.Where(pred)
	}
	if filter.Progress != "" {
		base = base.Where(sq.Eq{"v.progress": string(filter.Progress)})
	}
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		or := sq.Or{
			sq.ILike{"v.fact_identifier": pattern},
			sq.ILike{"v.category": pattern},
			sq.ILike{"v.dvr": pattern},
			sq.ILike{"v.camera": pattern},
			sq.ILike{"v.incident_location": pattern},
		}
		if filter.SearchSanctions {
			or = append(or, sq.ILike{"v.fullname": pattern})
		}
		base = base.Where(or)
	}
	return base
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern builds an ILIKE substring pattern with the LIKE
// metacharacters in term matched literally.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// List returns one page of scoped violations with photos and the total count.
func (r *PGRepository) List(ctx context.Context, scope Scope, filter ListFilter) ([]Violation, int, error) {
	countSQL, countArgs, err := r.filtered(r.psql.Select("COUNT(*)"), scope, filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("violations: build count: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("violations: count: %w", err)
	}

	query := r.filtered(r.psql.Select(violationColumns...), scope, filter).
		OrderBy("v.processing_date DESC", "v.id DESC")
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("violations: build list: %w", err)
	}
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("violations: list: %w", err)
	}
	defer rows.Close()

	var out []Violation
	ids := make([]int64, 0)
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	photos, err := r.photos(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].setPhotos(photos[out[i].ID])
	}
	return out, total, nil
}

// Get fetches a violation by id with its photos.
func (r *PGRepository) Get(ctx context.Context, id int64) (Violation, error) {
	sqlStr, args, err := r.psql.Select(violationColumns...).
		From("violations v").
		LeftJoin("branches b ON b.id = v.branch_id").
		LeftJoin("users u ON u.id = v.user_id").
		Where(sq.Eq{"v.id": id}).
		ToSql()
	if err != nil {
		return Violation{}, err
	}
	v, err := scanViolation(r.pool.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Violation{}, shared.NewError(shared.ErrNotFound, "violation not found")
		}
		return Violation{}, err
	}
	photos, err := r.photos(ctx, []int64{id})
	if err != nil {
		return Violation{}, err
	}
	v.setPhotos(photos[id])
	return v, nil
}

func (r *PGRepository) photos(ctx context.Context, violationIDs []int64) (map[int64][]Photo, error) {
	out := make(map[int64][]Photo, len(violationIDs))
	if len(violationIDs) == 0 {
		return out, nil
	}
	sqlStr, args, err := r.psql.Select("id", "violation_id", "filename", "stored_path", "public_url", "size_bytes", "uploaded_by", "uploaded_at").
		From("violation_photos").
		Where(sq.Eq{"violation_id": violationIDs}).
		OrderBy("uploaded_at", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("violations: photos: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.ViolationID, &p.Filename, &p.StoredPath, &p.URL, &p.Size, &p.UploadedBy, &p.UploadedAt); err != nil {
			return nil, err
		}
		out[p.ViolationID] = append(out[p.ViolationID], p)
	}
	return out, rows.Err()
}

// Create inserts a violation and returns its id.
func (r *PGRepository) Create(ctx context.Context, v Violation) (int64, error) {
	sqlStr, args, err := r.psql.Insert("violations").
		Columns("branch_id", "user_id", "processing_date", "processed_date", "dvr", "camera",
			"incident_location", "category", "category_comment", "fact_identifier", "progress").
		Values(v.BranchID, v.UserID, v.ProcessingDate, v.ProcessedDate, v.DVR, v.Camera,
			v.IncidentLocation, v.Category, v.CategoryComment, v.FactIdentifier, string(v.Progress)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		if shared.IsForeignKeyViolation(err) {
			return 0, shared.Invalid("branch_id", "unknown branch")
		}
		return 0, fmt.Errorf("violations: insert: %w", err)
	}
	return id, nil
}

// updateClauses maps the typed partial update onto column assignments.
func updateClauses(in UpdateInput) map[string]any {
	set := map[string]any{}
	if in.Responsibility.Set {
		set["responsibility"] = nullable(in.Responsibility, func(s string) any { return s })
	}
	if in.Fullname.Set {
		set["fullname"] = nullable(in.Fullname, func(s string) any { return s })
	}
	if in.FineAmount.Set {
		set["fine_amount"] = nullable(in.FineAmount, func(a Amount) any { return float64(a) })
	}
	if in.Comment.Set {
		set["comment"] = nullable(in.Comment, func(s string) any { return s })
	}
	if in.Progress.Set {
		set["progress"] = string(in.Progress.Value)
	}
	if in.ProcessedDate.Set {
		set["processed_date"] = nullable(in.ProcessedDate, func(t FlexTime) any {
			if t.IsZero() {
				return nil
			}
			return t.Time
		})
	}
	return set
}

func nullable[T any](o Optional[T], value func(T) any) any {
	if o.Null {
		return nil
	}
	return value(o.Value)
}

// Update applies the supplied fields. Concurrent updates are last write wins.
func (r *PGRepository) Update(ctx context.Context, id int64, in UpdateInput) error {
	set := updateClauses(in)
	if len(set) == 0 {
		return nil
	}
	set["updated_at"] = time.Now().UTC()
	sqlStr, args, err := r.psql.Update("violations").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("violations: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewError(shared.ErrNotFound, "violation not found")
	}
	return nil
}

// Delete removes a violation and its photo rows, returning the photos so the
// caller can remove the files.
func (r *PGRepository) Delete(ctx context.Context, id int64) ([]Photo, error) {
	var removed []Photo
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `DELETE FROM violation_photos WHERE violation_id = $1 RETURNING id, violation_id, filename, stored_path, public_url, size_bytes, uploaded_by, uploaded_at`, id)
		if err != nil {
			return err
		}
		removed, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Photo, error) {
			var p Photo
			err := row.Scan(&p.ID, &p.ViolationID, &p.Filename, &p.StoredPath, &p.URL, &p.Size, &p.UploadedBy, &p.UploadedAt)
			return p, err
		})
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM violations WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.NewError(shared.ErrNotFound, "violation not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// AddPhoto appends a photo row.
func (r *PGRepository) AddPhoto(ctx context.Context, p Photo) (Photo, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO violation_photos (violation_id, filename, stored_path, public_url, size_bytes, uploaded_by)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, uploaded_at`,
		p.ViolationID, p.Filename, p.StoredPath, p.URL, p.Size, p.UploadedBy).Scan(&p.ID, &p.UploadedAt)
	if err != nil {
		return Photo{}, fmt.Errorf("violations: add photo: %w", err)
	}
	return p, nil
}

// Stats aggregates the scoped set by progress and branch.
func (r *PGRepository) Stats(ctx context.Context, scope Scope, filter ListFilter) (Stats, error) {
	stats := Stats{ByProgress: map[string]int{}, ByBranch: []BranchCount{}}

	sqlStr, args, err := r.filtered(r.psql.Select("v.progress", "COUNT(*)", "COALESCE(SUM(v.fine_amount), 0)::float8"), scope, filter).
		GroupBy("v.progress").ToSql()
	if err != nil {
		return Stats{}, err
	}
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("violations: stats: %w", err)
	}
	for rows.Next() {
		var progress string
		var n int
		var fines float64
		if err := rows.Scan(&progress, &n, &fines); err != nil {
			rows.Close()
			return Stats{}, err
		}
		stats.ByProgress[progress] = n
		stats.Total += n
		stats.FinesTotal += fines
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	sqlStr, args, err = r.filtered(r.psql.Select("v.branch_id", "COALESCE(b.name, '')", "COUNT(*)"), scope, filter).
		GroupBy("v.branch_id", "b.name").OrderBy("COUNT(*) DESC", "v.branch_id").ToSql()
	if err != nil {
		return Stats{}, err
	}
	rows, err = r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("violations: stats by branch: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var bc BranchCount
		if err := rows.Scan(&bc.BranchID, &bc.BranchName, &bc.Count); err != nil {
			return Stats{}, err
		}
		stats.ByBranch = append(stats.ByBranch, bc)
	}
	return stats, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
