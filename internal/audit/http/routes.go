package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/agrohub/agrohub/internal/platform/httpx"
	"github.com/agrohub/agrohub/internal/shared"
)

const exportRateLimit = 10
const exportRateWindow = time.Minute

// MountRoutes registers the audit timeline and its CSV export.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(exportRateLimit, exportRateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many export requests", "")
		}),
	)
	r.Get("/", h.handleTimeline)
	r.With(limiter).Get("/export.csv", h.handleExport)
}

func rateLimitKey(r *http.Request) (string, error) {
	if p, ok := shared.PrincipalFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(p.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
