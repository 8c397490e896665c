package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/agrohub/agrohub/internal/platform/httpx"
	"github.com/agrohub/agrohub/internal/shared"
)

// CookieName carries the token for browser clients.
const CookieName = "agrohub_token"

// Middleware authenticates API requests.
type Middleware struct {
	Tokens  *TokenIssuer
	Service *Service
	Logger  *slog.Logger
}

// RequireAuth rejects requests without a valid token for an active user and
// stores the principal in the request context.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			httpx.RespondError(w, m.Logger, shared.ErrAuthenticationRequired)
			return
		}
		claims, err := m.Tokens.Parse(raw)
		if err != nil {
			httpx.RespondError(w, m.Logger, err)
			return
		}
		// Role and active flag come from the database, not the token.
		user, err := m.Service.CurrentUser(r.Context(), claims.UserID)
		if err != nil {
			httpx.RespondError(w, m.Logger, err)
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), user.Principal())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles allows only principals holding one of roles.
func RequireRoles(logger *slog.Logger, roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := shared.RequirePrincipal(r.Context())
			if err != nil {
				httpx.RespondError(w, logger, err)
				return
			}
			if !actor.Role.In(roles...) {
				httpx.RespondError(w, logger, shared.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
