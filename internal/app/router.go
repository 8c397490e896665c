package app

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	audithttp "github.com/agrohub/agrohub/internal/audit/http"
	"github.com/agrohub/agrohub/internal/auth"
	"github.com/agrohub/agrohub/internal/branches"
	"github.com/agrohub/agrohub/internal/incidents"
	"github.com/agrohub/agrohub/internal/observability"
	"github.com/agrohub/agrohub/internal/permissions"
	"github.com/agrohub/agrohub/internal/platform/httpx"
	"github.com/agrohub/agrohub/internal/shared"
	"github.com/agrohub/agrohub/internal/users"
	"github.com/agrohub/agrohub/internal/violations"
	"github.com/agrohub/agrohub/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Metrics            *observability.Metrics
	AuthMiddleware     auth.Middleware
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	BranchesHandler    *branches.Handler
	ViolationsHandler  *violations.Handler
	PermissionsHandler *permissions.Handler
	IncidentsHandler   *incidents.Handler
	AuditHandler       *audithttp.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "route not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, httpx.CodeMethodNotAllow, "method not allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	requireAuth := params.AuthMiddleware.RequireAuth
	adminOnly := auth.RequireRoles(params.Logger, shared.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Get("/modules", func(w http.ResponseWriter, r *http.Request) {
			httpx.OK(w, map[string]any{"modules": Modules()})
		})
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			if params.UsersHandler != nil {
				r.With(adminOnly).Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.BranchesHandler != nil {
				r.Route("/branches", params.BranchesHandler.MountRoutes)
			}
			r.Route("/violations", func(r chi.Router) {
				if params.PermissionsHandler != nil {
					r.With(adminOnly).Route("/permissions", params.PermissionsHandler.MountRoutes)
				}
				if params.ViolationsHandler != nil {
					params.ViolationsHandler.MountRoutes(r)
				}
			})
			if params.IncidentsHandler != nil {
				r.Route("/incidents", params.IncidentsHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				r.With(auth.RequireRoles(params.Logger, shared.RoleAdmin, shared.RoleMonitor)).Route("/audit", params.AuditHandler.MountRoutes)
			}
		})
	})

	if params.Config != nil && params.Config.UploadDir != "" {
		fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(params.Config.UploadDir)))
		r.With(requireAuth).Handle("/uploads/*", uploadsHandler(fileServer))
	}

	return r
}

// uploadsHandler serves stored photos without directory listings.
func uploadsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "file not found", "")
			return
		}
		w.Header().Set("Cache-Control", "private, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
