package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrohub/agrohub/internal/shared"
)

type memoryUsers struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]User
	createErr error
	links     int
}

func newMemoryUsers(users ...User) *memoryUsers {
	m := &memoryUsers{users: map[int64]User{}}
	for _, u := range users {
		m.users[u.ID] = u
		if u.ID > m.nextID {
			m.nextID = u.ID
		}
	}
	return m
}

func (m *memoryUsers) find(match func(User) bool) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *User
	for _, u := range m.users {
		u := u
		if match(u) && (best == nil || u.ID < best.ID) {
			best = &u
		}
	}
	if best == nil {
		return User{}, shared.ErrNotFound
	}
	return *best, nil
}

func (m *memoryUsers) FindByLogin(_ context.Context, login string) (User, error) {
	return m.find(func(u User) bool {
		return strings.EqualFold(u.Login, login) || (u.Email != "" && strings.EqualFold(u.Email, login))
	})
}

func (m *memoryUsers) FindByID(_ context.Context, id int64) (User, error) {
	return m.find(func(u User) bool { return u.ID == id })
}

func (m *memoryUsers) FindByLegacyID(_ context.Context, legacyID int64) (User, error) {
	return m.find(func(u User) bool { return u.LegacyAccountID != nil && *u.LegacyAccountID == legacyID })
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (User, error) {
	return m.find(func(u User) bool { return u.Email != "" && strings.EqualFold(u.Email, email) })
}

func (m *memoryUsers) LinkLegacy(_ context.Context, userID, legacyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.LegacyAccountID = &legacyID
	m.users[userID] = u
	m.links++
	return nil
}

func (m *memoryUsers) Create(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return User{}, m.createErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Login, user.Login) {
			return User{}, &pgconn.PgError{Code: "23505"}
		}
	}
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	return user, nil
}

type memoryLegacy map[string]LegacyAccount

func (m memoryLegacy) FindAccount(_ context.Context, login string) (LegacyAccount, error) {
	for _, acc := range m {
		if strings.EqualFold(acc.Username, login) || strings.EqualFold(acc.Email, login) {
			return acc, nil
		}
	}
	return LegacyAccount{}, shared.ErrNotFound
}

func mustHash(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}

// phpHash rewrites a Go bcrypt hash with the $2y$ prefix PHP emits.
func phpHash(password string) string {
	return "$2y$" + strings.TrimPrefix(mustHash(password), "$2a$")
}

const testSecret = "test-secret-0123456789"
