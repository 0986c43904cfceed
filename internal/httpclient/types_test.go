package httpclient_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/billing-sync-server/internal/httpclient"
)

func TestHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		url           string
		message       string
		expectedError string
		retryable     bool
	}{
		{
			name:          "not found",
			statusCode:    http.StatusNotFound,
			url:           "http://example.com",
			message:       "Not Found",
			expectedError: "HTTP 404 for URL http://example.com: Not Found",
		},
		{
			name:          "server error",
			statusCode:    http.StatusInternalServerError,
			url:           "http://api.example.com/v1/subscriptions",
			message:       "Internal Server Error",
			expectedError: "HTTP 500 for URL http://api.example.com/v1/subscriptions: Internal Server Error",
			retryable:     true,
		},
		{
			name:          "rate limited",
			statusCode:    http.StatusTooManyRequests,
			url:           "http://example.com",
			message:       "Too Many Requests",
			expectedError: "HTTP 429 for URL http://example.com: Too Many Requests",
			retryable:     true,
		},
		{
			name:          "unauthorized",
			statusCode:    http.StatusUnauthorized,
			url:           "http://example.com",
			message:       "",
			expectedError: "HTTP 401 for URL http://example.com: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := httpclient.NewHTTPError(tt.statusCode, tt.url, tt.message)
			assert.Equal(t, tt.expectedError, err.Error())
			assert.Equal(t, tt.retryable, err.IsRetryable())

			wrapped := fmt.Errorf("fetch failed: %w", err)
			var httpErr *httpclient.HTTPError
			require.True(t, errors.As(wrapped, &httpErr))
			assert.Equal(t, tt.statusCode, httpErr.StatusCode)
		})
	}
}
