package app

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrohub/agrohub/internal/auth"
	"github.com/agrohub/agrohub/internal/observability"
	"github.com/agrohub/agrohub/internal/shared"
	"github.com/agrohub/agrohub/internal/users"
)

type staticUsers map[int64]auth.User

func (s staticUsers) FindByLogin(_ context.Context, login string) (auth.User, error) {
	for _, u := range s {
		if u.Login == login {
			return u, nil
		}
	}
	return auth.User{}, shared.ErrNotFound
}

func (s staticUsers) FindByID(_ context.Context, id int64) (auth.User, error) {
	u, ok := s[id]
	if !ok {
		return auth.User{}, shared.ErrNotFound
	}
	return u, nil
}

type routerFixture struct {
	handler http.Handler
	tokens  *auth.TokenIssuer
	store   staticUsers
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("router-test-secret-0123", 0)
	require.NoError(t, err)
	store := staticUsers{
		1: {ID: 1, Login: "admin", Role: shared.RoleAdmin, IsActive: true},
		2: {ID: 2, Login: "vm", Role: shared.RoleUser, IsActive: true},
	}
	svc := auth.NewService(store, nil, nil, tokens, nil)
	mw := auth.Middleware{Tokens: tokens, Service: svc}

	uploads := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(uploads, "violations"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "violations", "a.jpg"), []byte("jpeg"), 0o644))

	cfg := &Config{AppEnv: "test", UploadDir: uploads, RateLimitPerMinute: 1000}
	handler := NewRouter(RouterParams{
		Config:         cfg,
		Metrics:        observability.NewMetrics(),
		AuthMiddleware: mw,
		AuthHandler:    auth.NewHandler(nil, svc, mw, nil, false),
		UsersHandler:   users.NewHandler(nil, users.NewService(nil, nil, nil, nil)),
	})
	return routerFixture{handler: handler, tokens: tokens, store: store}
}

func (f routerFixture) do(t *testing.T, method, path string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if userID > 0 {
		token, _, err := f.tokens.Issue(f.store[userID])
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestPublicRoutes(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.do(t, http.MethodGet, "/healthz", 0)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/modules", 0)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"name":"violations"`)

	rr = f.do(t, http.MethodGet, "/metrics", 0)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterWritesNoAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	f := newRouterFixture(t)
	rr := f.do(t, http.MethodGet, "/healthz", 0)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, buf.String())
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	f := newRouterFixture(t)
	rr := f.do(t, http.MethodGet, "/api/nope", 1)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"success":false,"error":"route not found","code":"not_found"}`, rr.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newRouterFixture(t)
	for _, path := range []string{"/api/violations/", "/api/users/", "/uploads/violations/a.jpg"} {
		rr := f.do(t, http.MethodGet, path, 0)
		require.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestUsersRouteIsAdminOnly(t *testing.T) {
	f := newRouterFixture(t)
	rr := f.do(t, http.MethodGet, "/api/users/", 2)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Contains(t, rr.Body.String(), `"code":"permission_denied"`)
}

func TestUploadsServeFilesButNotListings(t *testing.T) {
	f := newRouterFixture(t)
	rr := f.do(t, http.MethodGet, "/uploads/violations/a.jpg", 2)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "jpeg", rr.Body.String())
	require.Equal(t, "private, max-age=3600", rr.Header().Get("Cache-Control"))

	rr = f.do(t, http.MethodGet, "/uploads/violations/", 2)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
