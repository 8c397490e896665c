package violations

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agrohub/agrohub/internal/permissions"
	"github.com/agrohub/agrohub/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	nextID     int64
	nextPhoto  int64
	items      map[int64]Violation
	lastScope  Scope
	listCalled int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]Violation{}}
}

func (m *memoryRepo) seed(v Violation) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	v.ID = m.nextID
	v.setPhotos(v.Photos)
	m.items[v.ID] = v
	return v.ID
}

func (m *memoryRepo) List(_ context.Context, scope Scope, filter ListFilter) ([]Violation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastScope = scope
	m.listCalled++
	var out []Violation
	for _, v := range m.items {
		if !scope.Allows(v) {
			continue
		}
		if filter.Progress != "" && v.Progress != filter.Progress {
			continue
		}
		if filter.Search != "" && !matchesSearch(v, filter) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else {
		out = nil
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[id]
	if !ok {
		return Violation{}, shared.NewError(shared.ErrNotFound, "violation not found")
	}
	return v, nil
}

func (m *memoryRepo) Create(_ context.Context, v Violation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	v.ID = m.nextID
	v.CreatedAt = time.Now().UTC()
	v.UpdatedAt = v.CreatedAt
	v.setPhotos(nil)
	m.items[v.ID] = v
	return v.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, in UpdateInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[id]
	if !ok {
		return shared.NewError(shared.ErrNotFound, "violation not found")
	}
	str := func(o Optional[string]) *string {
		if o.Null {
			return nil
		}
		s := o.Value
		return &s
	}
	if in.Responsibility.Set {
		v.Responsibility = str(in.Responsibility)
	}
	if in.Fullname.Set {
		v.Fullname = str(in.Fullname)
	}
	if in.Comment.Set {
		v.Comment = str(in.Comment)
	}
	if in.FineAmount.Set {
		v.FineAmount = nil
		if !in.FineAmount.Null {
			f := float64(in.FineAmount.Value)
			v.FineAmount = &f
		}
	}
	if in.Progress.Set {
		v.Progress = in.Progress.Value
	}
	if in.ProcessedDate.Set {
		v.ProcessedDate = nil
		if !in.ProcessedDate.Null && !in.ProcessedDate.Value.IsZero() {
			t := in.ProcessedDate.Value.Time
			v.ProcessedDate = &t
		}
	}
	m.items[id] = v
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) ([]Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[id]
	if !ok {
		return nil, shared.NewError(shared.ErrNotFound, "violation not found")
	}
	delete(m.items, id)
	return v.Photos, nil
}

func (m *memoryRepo) AddPhoto(_ context.Context, p Photo) (Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[p.ViolationID]
	if !ok {
		return Photo{}, shared.NewError(shared.ErrNotFound, "violation not found")
	}
	m.nextPhoto++
	p.ID = m.nextPhoto
	p.UploadedAt = time.Now().UTC()
	v.setPhotos(append(v.Photos, p))
	m.items[v.ID] = v
	return p, nil
}

func (m *memoryRepo) Stats(ctx context.Context, scope Scope, filter ListFilter) (Stats, error) {
	filter.Limit, filter.Offset = 0, 0
	items, total, err := m.List(ctx, scope, filter)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: total, ByProgress: map[string]int{}, ByBranch: []BranchCount{}}
	byBranch := map[int64]int{}
	for _, v := range items {
		stats.ByProgress[string(v.Progress)]++
		byBranch[v.BranchID]++
		if v.FineAmount != nil {
			stats.FinesTotal += *v.FineAmount
		}
	}
	for id, n := range byBranch {
		stats.ByBranch = append(stats.ByBranch, BranchCount{BranchID: id, Count: n})
	}
	return stats, nil
}

type fakeCaps map[int64]permissions.Capabilities

func (f fakeCaps) Resolve(_ context.Context, userID int64, _ shared.Role) (permissions.Capabilities, error) {
	return f[userID], nil
}

type fakeBranches map[int64][]int64

func (f fakeBranches) UserBranchIDs(_ context.Context, userID int64) ([]int64, error) {
	return f[userID], nil
}

type memoryStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	removed []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: map[string][]byte{}}
}

func (s *memoryStorage) Save(_ context.Context, name string, r io.Reader) (StoredFile, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return StoredFile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := "violations/" + name
	s.files[path] = buf.Bytes()
	return StoredFile{Filename: name, Path: path, URL: "/uploads/" + path, Size: n}, nil
}

func (s *memoryStorage) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	s.removed = append(s.removed, path)
	return nil
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (a *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return nil
}

func (a *memoryAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

// Test fixture users.
var (
	adminUser = shared.Principal{UserID: 1, Login: "admin", Role: shared.RoleAdmin}
	vmUser    = shared.Principal{UserID: 2, Login: "vm_north", Role: shared.RoleUser}
	gmUser    = shared.Principal{UserID: 3, Login: "gm_north", Role: shared.RoleManager}
	otherVM   = shared.Principal{UserID: 4, Login: "vm_south", Role: shared.RoleUser}
	noneUser  = shared.Principal{UserID: 5, Login: "guest", Role: shared.RoleUser}
	auditUser = shared.Principal{UserID: 6, Login: "auditor", Role: shared.RoleMonitor}

	vmCaps    = presetCaps(permissions.RoleTypeVM)
	gmCaps    = presetCaps(permissions.RoleTypeGM)
	auditCaps = presetCaps(permissions.RoleTypeAudit)
)

func presetCaps(t permissions.RoleType) permissions.Capabilities {
	p, ok := permissions.PresetFor(t)
	if !ok {
		panic("unknown preset " + string(t))
	}
	return p.Capabilities
}

type fixture struct {
	svc     *Service
	repo    *memoryRepo
	storage *memoryStorage
	audit   *memoryAudit
}

func newFixture() fixture {
	repo := newMemoryRepo()
	storage := newMemoryStorage()
	audit := &memoryAudit{}
	svc := NewService(ServiceConfig{
		Repository: repo,
		Capabilities: fakeCaps{
			adminUser.UserID: permissions.DefaultFor(shared.RoleAdmin),
			vmUser.UserID:    vmCaps,
			gmUser.UserID:    gmCaps,
			otherVM.UserID:   vmCaps,
			auditUser.UserID: auditCaps,
		},
		Branches: fakeBranches{gmUser.UserID: {10}},
		Storage:  storage,
		Audit:    audit,
	})
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	return fixture{svc: svc, repo: repo, storage: storage, audit: audit}
}

func sampleViolation(branchID, userID int64) Violation {
	fine := 150.0
	who := "Ivanov"
	return Violation{
		BranchID:         branchID,
		UserID:           userID,
		ProcessingDate:   time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		DVR:              "DVR-1",
		Camera:           "CAM-2",
		IncidentLocation: "Loading bay",
		Category:         "Smoking",
		FactIdentifier:   "F-100",
		Progress:         ProgressPending,
		Fullname:         &who,
		FineAmount:       &fine,
		Photos:           []Photo{{ID: 90, Filename: "a.jpg", StoredPath: "violations/a.jpg", URL: "/uploads/violations/a.jpg"}},
	}
}

func matchesSearch(v Violation, filter ListFilter) bool {
	fields := []string{v.FactIdentifier, v.Category, v.DVR, v.Camera, v.IncidentLocation}
	if filter.SearchSanctions && v.Fullname != nil {
		fields = append(fields, *v.Fullname)
	}
	term := strings.ToLower(filter.Search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}
