package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agrohub/agrohub/internal/platform/httpx"
	"github.com/agrohub/agrohub/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user routes. Callers gate the group to administrators.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Post("/", h.createUser)
	r.Get("/{id}", h.getUser)
	r.Put("/{id}", h.updateUser)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	users, err := h.service.ListUsers(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, map[string]any{"users": users, "total": len(users)})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), actor, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	user, err := h.service.UpdateUser(r.Context(), actor, id, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, user)
}

func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Invalid("id", "invalid user id")
	}
	return id, nil
}
