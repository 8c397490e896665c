package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agrohub/agrohub/internal/audit"
	"github.com/agrohub/agrohub/internal/platform/httpx"
	"github.com/agrohub/agrohub/internal/shared"
)

const (
	dateLayout       = "2006-01-02"
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	ExportCSV(ctx context.Context, filters audit.TimelineFilters) ([]byte, error)
}

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler builds an audit handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if _, err := shared.RequirePrincipal(r.Context()); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if _, err := shared.RequirePrincipal(r.Context()); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	csvBytes, err := h.service.ExportCSV(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-timeline.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters reads a date window, where "to" is inclusive, plus optional
// actor, entity and action filters.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format(dateLayout)
	}
	toDay, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return audit.TimelineFilters{}, shared.Invalid("to", "to must be YYYY-MM-DD")
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toDay.Add(-defaultDateRange).Format(dateLayout)
	}
	fromDay, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return audit.TimelineFilters{}, shared.Invalid("from", "from must be YYYY-MM-DD")
	}
	if fromDay.After(toDay) {
		return audit.TimelineFilters{}, shared.Invalid("from", "from must not be after to")
	}
	if toDay.Sub(fromDay) > maxDateRange {
		return audit.TimelineFilters{}, shared.Invalid("from", "date range must not exceed 90 days")
	}

	filters := audit.TimelineFilters{
		From:     fromDay,
		To:       toDay.Add(24 * time.Hour),
		Entity:   strings.TrimSpace(q.Get("entity")),
		EntityID: strings.TrimSpace(q.Get("entity_id")),
		Action:   strings.TrimSpace(q.Get("action")),
	}
	if v := strings.TrimSpace(q.Get("actor_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return audit.TimelineFilters{}, shared.Invalid("actor_id", "actor_id must be a positive integer")
		}
		filters.ActorID = id
	}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page <= 0 {
			return audit.TimelineFilters{}, shared.Invalid("page", "page must be a positive integer")
		}
		filters.Page = page
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return audit.TimelineFilters{}, shared.Invalid("page_size", "page_size must be a positive integer")
		}
		filters.PageSize = size
	}
	return filters, nil
}
