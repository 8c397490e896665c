package permissions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/agrohub/agrohub/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	users   map[int64]UserRow
	records map[int64]Record
	lookups int
	failOn  int64
}

func newMemoryRepo(users ...UserRow) *memoryRepo {
	repo := &memoryRepo{users: map[int64]UserRow{}, records: map[int64]Record{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *memoryRepo) Get(_ context.Context, userID int64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	rec, ok := m.records[userID]
	if !ok {
		return Record{}, shared.ErrNotFound
	}
	return rec, nil
}

func (m *memoryRepo) Upsert(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.UserID] = rec
	return nil
}

func (m *memoryRepo) UpsertMany(_ context.Context, recs []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		if rec.UserID == m.failOn {
			return context.DeadlineExceeded
		}
		if _, ok := m.users[rec.UserID]; !ok {
			return fmt.Errorf("upsert: %w", &pgconn.PgError{Code: "23503"})
		}
	}
	for _, rec := range recs {
		m.records[rec.UserID] = rec
	}
	return nil
}

func (m *memoryRepo) ListUsers(context.Context) ([]UserRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]UserRow, 0, len(m.users))
	for _, u := range m.users {
		if rec, ok := m.records[u.ID]; ok {
			rec := rec
			u.Permission = &rec
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) ActiveUserIDsByRole(_ context.Context, role shared.Role) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for _, u := range m.users {
		if u.IsActive && u.Role == role {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryRepo) UserExists(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[userID]
	return ok, nil
}

type memoryAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}
