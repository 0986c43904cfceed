package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/billing-sync-server/internal/api"
	"github.com/stacklok/billing-sync-server/internal/sync"
	"github.com/stacklok/billing-sync-server/internal/sync/state"
)

func newTestServer(t *testing.T, opts ...api.ServerOption) http.Handler {
	t.Helper()

	store, err := state.NewFileStore(t.TempDir(), "default")
	require.NoError(t, err)
	ingestor := sync.NewIngestor(store, store, time.Second)

	return api.NewServer(ingestor, store, store, opts...)
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	rr := serve(newTestServer(t), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		check          api.ReadinessCheck
		expectedStatus int
		expectedKey    string
	}{
		{
			name:           "no check configured",
			expectedStatus: http.StatusOK,
			expectedKey:    "status",
		},
		{
			name:           "store reachable",
			check:          func(context.Context) error { return nil },
			expectedStatus: http.StatusOK,
			expectedKey:    "status",
		},
		{
			name:           "store unreachable",
			check:          func(context.Context) error { return errors.New("connection refused") },
			expectedStatus: http.StatusServiceUnavailable,
			expectedKey:    "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rr := serve(newTestServer(t, api.WithReadinessCheck(tt.check)), http.MethodGet, "/readiness")

			assert.Equal(t, tt.expectedStatus, rr.Code)
			var response map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Contains(t, response, tt.expectedKey)
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	rr := serve(newTestServer(t), http.MethodGet, "/version")
	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	for _, key := range []string{"version", "commit", "build_date", "go_version", "platform"} {
		assert.Contains(t, response, key)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	rr := serve(newTestServer(t), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rr.Code, "metrics are only served when a handler is configured")

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("billing_sync_pending_depth 0\n"))
	})
	rr = serve(newTestServer(t, api.WithMetricsHandler(metrics)), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "billing_sync_pending_depth")
}

func TestV1RoutesMounted(t *testing.T) {
	t.Parallel()
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/notify", strings.NewReader(`{"entityId":"cus_1"}`))
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = serve(server, http.MethodGet, "/v1/pending/cus_1")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMiddlewaresApplied(t *testing.T) {
	t.Parallel()

	var seen []string
	record := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	server := newTestServer(t, api.WithMiddlewares(record, api.LoggingMiddleware))
	rr := serve(server, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"/health"}, seen)
}
