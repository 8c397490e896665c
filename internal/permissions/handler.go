package permissions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrohub/agrohub/internal/platform/httpx"
	"github.com/agrohub/agrohub/internal/shared"
)

// Handler serves the admin permission management actions.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the action endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.dispatch)
	r.Post("/", h.dispatch)
}

type presetRequest struct {
	UserID int64    `json:"user_id"`
	Preset RoleType `json:"preset"`
}

type bulkRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	action := r.URL.Query().Get("action")
	switch action {
	case "get_users":
		users, err := h.service.ListUsers(r.Context(), actor)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, map[string]any{"users": users})
	case "get_presets":
		presets, err := h.service.Presets(actor)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, map[string]any{"presets": presets})
	case "update_permissions":
		if !requirePost(w, r) {
			return
		}
		var in UpdateInput
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		rec, err := h.service.UpdatePermissions(r.Context(), actor, in)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, rec)
	case "apply_preset":
		if !requirePost(w, r) {
			return
		}
		var in presetRequest
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		rec, err := h.service.ApplyPreset(r.Context(), actor, in.UserID, in.Preset)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, rec)
	case "bulk_set_vm_permissions":
		if !requirePost(w, r) {
			return
		}
		var in bulkRequest
		if r.ContentLength != 0 {
			if err := httpx.DecodeJSON(r, &in); err != nil {
				httpx.RespondError(w, h.logger, err)
				return
			}
		}
		ids, err := h.service.BulkSetVMPermissions(r.Context(), actor, in.UserIDs)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, map[string]any{"updated": len(ids), "user_ids": ids})
	case "":
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "action is required", "action")
	default:
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "unknown action", "action")
	}
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		httpx.Fail(w, http.StatusMethodNotAllowed, httpx.CodeMethodNotAllow, "use POST for this action", "")
		return false
	}
	return true
}
