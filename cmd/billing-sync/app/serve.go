package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/billing-sync-server/internal/app"
	"github.com/stacklok/billing-sync-server/internal/telemetry"
)

const (
	defaultGracefulTimeout   = 30 * time.Second // Kubernetes-friendly shutdown time
	telemetryShutdownTimeout = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the billing sync server",
		Long: `Start the HTTP ingress, the optional Kafka consumer and the batch scheduler.

The server requires a configuration file (--config) that specifies:
- the batch size and sync interval
- the storage backend (database, sqlite or file)
- the billing provider endpoint and API key`,
		RunE: runServe,
	}

	cmd.Flags().String("address", ":8080", "Address to listen on")
	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return fmt.Errorf("failed to get address flag: %w", err)
	}

	slog.Info("Loaded configuration",
		"shard_key", cfg.GetShardKey(),
		"storage_type", cfg.GetStorageType(),
		"batch_size", cfg.GetBatchSize(),
		"sync_interval", cfg.GetSyncInterval())

	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(cfg.Telemetry),
		telemetry.WithShardKey(cfg.GetShardKey()),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	opts := []app.BillingSyncAppOptions{
		app.WithConfig(cfg),
		app.WithAddress(address),
	}
	if tel.Enabled() {
		opts = append(opts,
			app.WithMeterProvider(tel.MeterProvider()),
			app.WithTracerProvider(tel.TracerProvider()),
		)
	}
	if h := tel.MetricsHandler(); h != nil {
		opts = append(opts, app.WithMetricsHandler(h))
	}

	billingSyncApp, err := app.NewBillingSyncApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- billingSyncApp.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			_ = billingSyncApp.Stop(defaultGracefulTimeout)
			return err
		}
	}

	return billingSyncApp.Stop(defaultGracefulTimeout)
}
