package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `userdesk_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `userdesk_http_request_duration_seconds_bucket{route="/test"`)
}

func TestObserveCallLabelsOutcome(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObserveCall("list users", http.StatusOK, 10*time.Millisecond, nil)
	metrics.ObserveCall("create user", http.StatusConflict, time.Millisecond, errors.New("conflict"))
	metrics.ObserveCall("get app info", 0, time.Millisecond, errors.New("dial tcp: refused"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.apiCalls.WithLabelValues("list users", "ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.apiCalls.WithLabelValues("create user", "error", "409")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.apiCalls.WithLabelValues("get app info", "network_error", "0")))
	assert.Contains(t, scrape(t, metrics), "userdesk_users_api_call_duration_seconds_bucket")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveCall("list users", 200, time.Millisecond, nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, metrics.Middleware(next))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
