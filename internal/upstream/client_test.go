package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/billing-sync-server/internal/httpclient"
	"github.com/stacklok/billing-sync-server/internal/upstream"
)

const subscriptionList = `{
  "object": "list",
  "data": [
    {
      "id": "sub_123",
      "status": "active",
      "items": {"data": [{"price": {"id": "price_pro"}}]}
    },
    {
      "id": "sub_old",
      "status": "canceled",
      "items": {"data": [{"price": {"id": "price_basic"}}]}
    }
  ]
}`

func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func newClient(url string, opts ...upstream.Option) upstream.Client {
	opts = append([]upstream.Option{upstream.WithInitialInterval(time.Millisecond)}, opts...)
	return upstream.NewClient(url, httpclient.NewDefaultClient(5*time.Second, httpclient.WithBearerToken("sk_test")), opts...)
}

func TestFetchLatest(t *testing.T) {
	t.Parallel()

	var gotQuery, gotPath, gotAuth string
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(subscriptionList))
	}))
	defer server.Close()

	record, err := newClient(server.URL+"/").FetchLatest(context.Background(), "cus_1")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "/v1/subscriptions", gotPath)
	assert.Equal(t, "customer=cus_1&limit=1&status=all", gotQuery)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, "cus_1", record.EntityID)
	assert.Equal(t, "sub_123", record.Get("id").String())
	assert.Equal(t, "price_pro", record.Get("items.data.0.price.id").String())
}

func TestFetchLatestNoRecord(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer server.Close()

	record, err := newClient(server.URL).FetchLatest(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFetchLatestMalformedResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>"},
		{name: "no data array", body: `{"object":"list"}`},
		{name: "data is an object", body: `{"data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newClient(server.URL).FetchLatest(context.Background(), "cus_1")
			require.Error(t, err)
			assert.ErrorIs(t, err, upstream.ErrMalformedResponse)
		})
	}
}

func TestFetchLatestRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		failures     int32
		status       int
		maxRetries   int
		wantErr      bool
		wantAttempts int32
	}{
		{name: "recovers from 503", failures: 2, status: http.StatusServiceUnavailable, maxRetries: 3, wantAttempts: 3},
		{name: "recovers from 429", failures: 1, status: http.StatusTooManyRequests, maxRetries: 3, wantAttempts: 2},
		{name: "gives up after max retries", failures: 10, status: http.StatusBadGateway, maxRetries: 2, wantErr: true, wantAttempts: 3},
		{name: "does not retry 401", failures: 10, status: http.StatusUnauthorized, maxRetries: 3, wantErr: true, wantAttempts: 1},
		{name: "does not retry 404", failures: 10, status: http.StatusNotFound, maxRetries: 3, wantErr: true, wantAttempts: 1},
		{name: "no retries configured", failures: 1, status: http.StatusInternalServerError, maxRetries: 0, wantErr: true, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var attempts atomic.Int32
			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if attempts.Add(1) <= tt.failures {
					w.WriteHeader(tt.status)
					return
				}
				_, _ = w.Write([]byte(subscriptionList))
			}))
			defer server.Close()

			record, err := newClient(server.URL, upstream.WithMaxRetries(tt.maxRetries)).
				FetchLatest(context.Background(), "cus_1")

			assert.Equal(t, tt.wantAttempts, attempts.Load())
			if tt.wantErr {
				require.Error(t, err)
				var httpErr *httpclient.HTTPError
				require.True(t, errors.As(err, &httpErr))
				assert.Equal(t, tt.status, httpErr.StatusCode)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, record)
		})
	}
}

func TestFetchLatestContextCancelled(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient(server.URL, upstream.WithInitialInterval(time.Second)).FetchLatest(ctx, "cus_1")
	require.Error(t, err)
}
