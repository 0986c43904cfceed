package auth

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"k8s.io/utils/clock"

	"github.com/stacklok/billing-sync-server/internal/api/common"
)

// maxSignedBodyBytes bounds the body buffered for verification
const maxSignedBodyBytes = 1 << 20

// SignatureMiddleware rejects requests whose body does not carry a valid
// signature. The verified body is handed to the next handler unchanged.
func SignatureMiddleware(v *Verifier, clk clock.PassiveClock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignedBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					common.WriteErrorResponse(w, "Event body too large", http.StatusRequestEntityTooLarge)
					return
				}
				common.WriteErrorResponse(w, "Failed to read event body", http.StatusBadRequest)
				return
			}

			if err := v.Verify(r.Header.Get(SignatureHeader), body, clk.Now()); err != nil {
				slog.Warn("Webhook signature rejected",
					"error", err,
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path)
				common.WriteErrorResponse(w, "invalid webhook signature", http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// passthroughMiddleware is used when no webhook secret is configured
func passthroughMiddleware(next http.Handler) http.Handler {
	return next
}
