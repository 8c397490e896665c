package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrohub/agrohub/internal/auth"
	"github.com/agrohub/agrohub/internal/permissions"
	"github.com/agrohub/agrohub/internal/shared"
	_ "github.com/agrohub/agrohub/testing"
)

type stubUsers struct {
	users map[int64]auth.User
}

func (s *stubUsers) FindByLogin(_ context.Context, login string) (auth.User, error) {
	for _, u := range s.users {
		if u.Login == login {
			return u, nil
		}
	}
	return auth.User{}, shared.ErrNotFound
}

func (s *stubUsers) FindByID(_ context.Context, id int64) (auth.User, error) {
	u, ok := s.users[id]
	if !ok {
		return auth.User{}, shared.ErrNotFound
	}
	return u, nil
}

type stubCaps struct{}

func (stubCaps) Resolve(_ context.Context, _ int64, role shared.Role) (permissions.Capabilities, error) {
	return permissions.DefaultFor(role), nil
}

func newRouter(t *testing.T, users *stubUsers) (chi.Router, *auth.TokenIssuer) {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	svc := auth.NewService(users, nil, nil, tokens, nil)
	mw := auth.Middleware{Tokens: tokens, Service: svc}
	r := chi.NewRouter()
	auth.NewHandler(nil, svc, mw, stubCaps{}, false).MountRoutes(r)
	return r, tokens
}

func TestLoginSetsCookieAndMeAcceptsIt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &stubUsers{users: map[int64]auth.User{
		1: {ID: 1, Login: "gm_north", PasswordHash: string(hash), Role: shared.RoleManager, IsActive: true},
	}}
	r, _ := newRouter(t, users)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"login":"gm_north","password":"correctpass"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotContains(t, rr.Body.String(), "password_hash")

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Token)

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"can_view_branch":true`)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Data.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &stubUsers{users: map[int64]auth.User{
		1: {ID: 1, Login: "user", PasswordHash: string(hash), IsActive: true},
	}}
	r, _ := newRouter(t, users)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"login":"user","password":"wrongpass"}`)))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Body.String(), `"code":"authentication_required"`)
}

func TestMeRejectsMissingAndDisabled(t *testing.T) {
	users := &stubUsers{users: map[int64]auth.User{
		2: {ID: 2, Login: "gone", Role: shared.RoleAdmin, IsActive: false},
	}}
	r, tokens := newRouter(t, users)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	token, _, err := tokens.Issue(auth.User{ID: 2, Role: shared.RoleAdmin})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	r, _ := newRouter(t, &stubUsers{})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Set-Cookie"), auth.CookieName+"=;")
}

func TestRequireRoles(t *testing.T) {
	h := auth.RequireRoles(nil, shared.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: shared.RoleManager}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: shared.RoleAdmin}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}
