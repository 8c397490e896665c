package branches

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agrohub/agrohub/internal/platform/httpx"
	"github.com/agrohub/agrohub/internal/shared"
)

// Handler serves branch endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: shared.NewValidator()}
}

// MountRoutes registers branch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/mine", h.mine)
	r.Post("/", h.create)
	r.Put("/assignments", h.assign)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, map[string]any{"branches": out})
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out, err := h.service.Mine(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
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
	if err := shared.ValidateStruct(h.validator, in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	b, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, b)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var in AssignInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := shared.ValidateStruct(h.validator, in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.Assign(r.Context(), actor, in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, "branches assigned")
}
