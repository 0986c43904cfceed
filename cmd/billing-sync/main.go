// Package main is the entry point for the billing sync server.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/stacklok/billing-sync-server/cmd/billing-sync/app"
	"github.com/stacklok/billing-sync-server/internal/config"
	"github.com/stacklok/billing-sync-server/internal/logging"
)

func main() {
	// A missing .env file is the normal case outside local development
	_ = godotenv.Load()

	// Logs go to stderr so that stdout stays clean for command output
	handler := logging.NewHandler(logging.LevelFromEnv(config.EnvPrefix), nil)
	slog.SetDefault(slog.New(handler))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
