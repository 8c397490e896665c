package violations

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agrohub/agrohub/internal/platform/httpx"
	"github.com/agrohub/agrohub/internal/shared"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves the violation action endpoint.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	maxUploadBytes int64
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxPhotoBytes
	}
	return &Handler{logger: logger, service: service, maxUploadBytes: maxUploadBytes}
}

// MountRoutes registers violation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.dispatch)
	r.Post("/", h.dispatch)
	r.Put("/", h.dispatch)
	r.Delete("/", h.dispatch)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	action := r.URL.Query().Get("action")
	if action == "" {
		action = defaultAction(r.Method)
	}
	switch action {
	case "list":
		h.list(w, r, actor)
	case "get":
		h.get(w, r, actor)
	case "create":
		if !allowMethods(w, r, http.MethodPost) {
			return
		}
		h.create(w, r, actor)
	case "update":
		if !allowMethods(w, r, http.MethodPost, http.MethodPut) {
			return
		}
		h.update(w, r, actor)
	case "delete":
		if !allowMethods(w, r, http.MethodPost, http.MethodDelete) {
			return
		}
		h.delete(w, r, actor)
	case "upload_photo":
		if !allowMethods(w, r, http.MethodPost) {
			return
		}
		h.uploadPhoto(w, r, actor)
	case "export":
		h.export(w, r, actor)
	case "analytics":
		h.analytics(w, r, actor)
	case "permissions":
		caps, err := h.service.Capabilities(r.Context(), actor)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, map[string]any{"permissions": caps})
	default:
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "unknown action", "action")
	}
}

func defaultAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "list"
	}
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	httpx.Fail(w, http.StatusMethodNotAllowed, httpx.CodeMethodNotAllow,
		"use "+strings.Join(methods, " or ")+" for this action", "")
	return false
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, actor shared.Principal) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, actor shared.Principal) {
	id, err := parseID(r.URL.Query().Get("id"), "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	v, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, map[string]any{"violation": v})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, actor shared.Principal) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	id, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, map[string]any{"violation_id": id})
}

type updateRequest struct {
	ID FlexInt `json:"id"`
	UpdateInput
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, actor shared.Principal) {
	var in updateRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	id := int64(in.ID)
	if raw := r.URL.Query().Get("id"); raw != "" {
		parsed, err := parseID(raw, "id")
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		id = parsed
	}
	if err := h.service.Update(r.Context(), actor, id, in.UpdateInput); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, "violation updated")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, actor shared.Principal) {
	id, err := parseID(r.URL.Query().Get("id"), "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, "violation deleted")
}

func (h *Handler) uploadPhoto(w http.ResponseWriter, r *http.Request, actor shared.Principal) {
	// Leave room for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, h.logger, shared.Invalid("photo", "file is too large"))
			return
		}
		httpx.RespondError(w, h.logger, shared.NewError(shared.ErrValidation, "multipart form expected"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	id, err := parseID(r.FormValue("violation_id"), "violation_id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		httpx.RespondError(w, h.logger, shared.MissingField("photo"))
		return
	}
	defer file.Close()
	photo, err := h.service.UploadPhoto(r.Context(), actor, id, header.Filename, file)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Created(w, map[string]any{"photo": photo})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, actor shared.Principal) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), actor, filter, &buf); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	name := fmt.Sprintf("violations-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request, actor shared.Principal) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	stats, err := h.service.Analytics(r.Context(), actor, filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, stats)
}

func parseID(raw, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, shared.MissingField(field)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Invalid(field, field+" must be a positive integer")
	}
	return id, nil
}

// parseFilter reads branch_ids (comma separated or repeated), progress,
// search, limit and offset.
func parseFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	page := shared.ParsePage(q.Get("limit"), q.Get("offset"))
	filter := ListFilter{
		Progress: Progress(strings.TrimSpace(q.Get("progress"))),
		Search:   strings.TrimSpace(q.Get("search")),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	for _, raw := range q["branch_ids"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return ListFilter{}, shared.Invalid("branch_ids", "branch_ids must be a comma separated list of ids")
			}
			filter.BranchIDs = append(filter.BranchIDs, id)
		}
	}
	return filter, nil
}
