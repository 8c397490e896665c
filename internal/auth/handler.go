package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agrohub/agrohub/internal/permissions"
	"github.com/agrohub/agrohub/internal/platform/httpx"
	"github.com/agrohub/agrohub/internal/shared"
)

// CapabilityResolver resolves violation capabilities for /me.
type CapabilityResolver interface {
	Resolve(ctx context.Context, userID int64, role shared.Role) (permissions.Capabilities, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	middleware   Middleware
	capabilities CapabilityResolver
	secureCookie bool
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, middleware Middleware, caps CapabilityResolver, secureCookie bool) *Handler {
	return &Handler{logger: logger, service: service, middleware: middleware, capabilities: caps, secureCookie: secureCookie}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.With(h.middleware.RequireAuth).Get("/me", h.me)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	sess, err := h.service.Login(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.OK(w, sess)
}

func (h *Handler) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.Message(w, "logged out")
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	user, err := h.service.CurrentUser(r.Context(), actor.UserID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out := map[string]any{"user": user}
	if h.capabilities != nil {
		caps, err := h.capabilities.Resolve(r.Context(), user.ID, user.Role)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		out["permissions"] = caps
	}
	httpx.OK(w, out)
}
