package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"k8s.io/utils/clock"

	"github.com/stacklok/billing-sync-server/internal/config"
)

// NewWebhookMiddleware creates the signature check for the billing webhook
// endpoint. A nil config leaves the endpoint unauthenticated.
func NewWebhookMiddleware(cfg *config.WebhookConfig, clk clock.PassiveClock) (func(http.Handler) http.Handler, error) {
	if cfg == nil {
		slog.Info("auth: webhook signatures not verified (no webhook config)")
		return passthroughMiddleware, nil
	}

	secret, err := cfg.GetSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook secret: %w", err)
	}

	v, err := NewVerifier(secret, cfg.GetTolerance())
	if err != nil {
		return nil, err
	}

	slog.Info("auth: webhook signatures verified", "tolerance", cfg.GetTolerance())
	return SignatureMiddleware(v, clk), nil
}
