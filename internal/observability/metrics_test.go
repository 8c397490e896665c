package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/agrohub/agrohub/internal/jobs"
)

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	jobmetrics.NewMetrics(metrics.Registerer()).Track("hr_task_notify").End(nil)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "agrohub_jobs_total"), "missing job counter")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/violations/*")
	req := httptest.NewRequest(http.MethodGet, "/api/violations/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("/api/violations/*", http.MethodGet, "403")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.authFailures.WithLabelValues("403")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, metrics.Middleware(next))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestSetupTracingWithoutEndpointIsNoop(t *testing.T) {
	shutdown := SetupTracing(context.Background(), TracingConfig{ServiceName: "agrohub-api"}, nil)
	require.NoError(t, shutdown(context.Background()))
}
