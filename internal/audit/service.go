package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// exportLimit caps rows in a single CSV export.
	exportLimit = 50000
)

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService builds an audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline fetches one page of audit rows.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, filters, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// ExportCSV renders every matching row, up to exportLimit, as CSV.
func (s *Service) ExportCSV(ctx context.Context, filters TimelineFilters) ([]byte, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	rows, err := s.repo.Window(ctx, filters, 0, exportLimit)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"at", "actor_id", "actor_login", "action", "entity", "entity_id", "meta"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.At.UTC().Format(time.RFC3339),
			strconv.FormatInt(row.ActorID, 10),
			row.ActorLogin,
			row.Action,
			row.Entity,
			row.EntityID,
			string(row.Meta),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
