package httpclient

import (
	"fmt"
	"net/http"
	"time"
)

// HTTPError represents an HTTP error with status code and URL
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
	// RetryAfter is the delay requested by the server, zero if none
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, url, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// IsRetryable reports whether the request may succeed if repeated:
// rate limiting and server-side failures are, client errors are not.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
