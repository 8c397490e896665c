package incidents

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agrohub/agrohub/internal/platform/httpx"
	"github.com/agrohub/agrohub/internal/shared"
)

// Handler serves incident endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers incident routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Put("/", h.transition)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("incident_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, h.logger, shared.Invalid("incident_id", "incident_id must be an integer"))
			return
		}
		in, err := h.service.Get(r.Context(), actor, id)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, map[string]any{"incident": in})
		return
	}
	page := shared.ParsePage(q.Get("limit"), q.Get("offset"))
	out, err := h.service.List(r.Context(), actor, ListFilter{
		Status: Status(strings.TrimSpace(q.Get("status"))),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, map[string]any{"incidents": out, "limit": page.Limit, "offset": page.Offset})
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
	id, err := h.service.Create(r.Context(), actor, in, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, map[string]any{"incident_id": id})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var in TransitionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out, err := h.service.Transition(r.Context(), actor, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, map[string]any{"incident": out})
}
