// Package app wires and runs the billing sync server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklok/billing-sync-server/internal/config"
)

// BillingSyncApp is a wired server: HTTP ingress, the optional Kafka
// consumer and the sync coordinator of one shard.
type BillingSyncApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// ctx outlives Start and is cancelled by Stop
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start runs the coordinator and the Kafka consumer in the background and
// blocks serving HTTP until Stop is called or the listener fails.
func (app *BillingSyncApp) Start() error {
	go func() {
		if err := app.components.SyncCoordinator.Start(app.ctx); err != nil {
			slog.Error("Sync coordinator failed", "shard", app.config.GetShardKey(), "error", err)
		}
	}()

	if consumer := app.components.KafkaConsumer; consumer != nil {
		if err := consumer.Start(app.ctx); err != nil {
			return fmt.Errorf("failed to start kafka consumer: %w", err)
		}
	}

	slog.Info("Accepting notifications", "address", app.httpServer.Addr, "shard", app.config.GetShardKey())
	err := app.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("HTTP server failed: %w", err)
}

// Stop shuts ingress down before the coordinator, so nothing is accepted
// after its last pass. Only an HTTP shutdown that overruns timeout is
// returned; component failures are logged.
func (app *BillingSyncApp) Stop(timeout time.Duration) error {
	slog.Info("Stopping billing sync server", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	httpErr := app.httpServer.Shutdown(ctx)

	if consumer := app.components.KafkaConsumer; consumer != nil {
		if err := consumer.Stop(); err != nil {
			slog.Error("Failed to stop kafka consumer", "error", err)
		}
	}
	if err := app.components.SyncCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if httpErr != nil {
		return fmt.Errorf("HTTP server did not drain in %s: %w", timeout, httpErr)
	}
	slog.Info("Billing sync server stopped")
	return nil
}

// GetConfig returns the loaded configuration
func (app *BillingSyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer exposes the server, mostly so tests can drive its handler
func (app *BillingSyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// GetComponents returns the wired components
func (app *BillingSyncApp) GetComponents() *AppComponents {
	return app.components
}
