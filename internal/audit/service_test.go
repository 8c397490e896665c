package audit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sliceRepo struct {
	rows          []TimelineRow
	offset, limit int
}

func (s *sliceRepo) Window(_ context.Context, _ TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.offset, s.limit = offset, limit
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := len(s.rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return s.rows[offset:end], nil
}

func rowsN(n int) []TimelineRow {
	out := make([]TimelineRow, n)
	for i := range out {
		out[i] = TimelineRow{ID: int64(i + 1), Action: "violation.update", Entity: "violation", EntityID: "1"}
	}
	return out
}

func TestTimelinePaging(t *testing.T) {
	repo := &sliceRepo{rows: rowsN(25)}
	svc := NewService(repo)

	first, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 10})
	require.NoError(t, err)
	require.Len(t, first.Rows, 10)
	require.Equal(t, 11, repo.limit)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Zero(t, first.Paging.PrevPage)

	last, err := svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 20, repo.offset)
	require.Len(t, last.Rows, 5)
	require.False(t, last.Paging.HasNext)
	require.Equal(t, 2, last.Paging.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &sliceRepo{}
	_, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 1000})
	require.NoError(t, err)
	require.Equal(t, maxPageSize+1, repo.limit)
}

func TestExportCSV(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	repo := &sliceRepo{rows: []TimelineRow{{
		At: at, ActorID: 6, ActorLogin: "hr", Action: "incident.pay", Entity: "incident", EntityID: "12",
		Meta: json.RawMessage(`{"paid_amount":50}`),
	}}}
	out, err := NewService(repo).ExportCSV(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "at,actor_id,actor_login,action,entity,entity_id,meta", lines[0])
	require.Equal(t, `2026-03-01T08:30:00Z,6,hr,incident.pay,incident,12,"{""paid_amount"":50}"`, lines[1])
	require.Equal(t, exportLimit, repo.limit)
}

func TestServiceWithoutRepository(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	require.Error(t, err)
}
