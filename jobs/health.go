package jobs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/agrohub/agrohub/internal/platform/httpx"
)

// QueueHealth summarises the default queue.
type QueueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Paused    bool   `json:"paused"`
}

// Handler exposes queue health over HTTP.
type Handler struct {
	inspector *asynq.Inspector
	logger    *slog.Logger
}

// NewHandler builds Handler instance. A nil inspector reports an empty queue.
func NewHandler(inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	out := QueueHealth{Queue: QueueDefault}
	if h.inspector == nil {
		httpx.OK(w, out)
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	switch {
	case errors.Is(err, asynq.ErrQueueNotFound):
		// Nothing has been enqueued yet.
	case err != nil:
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Fail(w, http.StatusServiceUnavailable, "queue_unavailable", "job queue unavailable", "")
		return
	default:
		out.Pending = info.Pending
		out.Active = info.Active
		out.Scheduled = info.Scheduled
		out.Retry = info.Retry
		out.Archived = info.Archived
		out.Paused = info.Paused
	}
	httpx.OK(w, out)
}
