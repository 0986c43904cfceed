// Package db contains code for opening the embedded SQLite database and the
// generated PostgreSQL query layer (see the sqlc subpackage).
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	// Registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"

	"github.com/stacklok/billing-sync-server/database"
)

const sqliteBusyTimeoutMillis = 5000

// OpenSQLite opens the SQLite database at path, creating it and its parent
// directory if needed, and applies all pending migrations.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path, sqliteBusyTimeoutMillis)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite allows a single writer; serialising on one connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		closeQuietly(sqlDB)
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := database.MigrateUpSQLite(ctx, sqlDB); err != nil {
		closeQuietly(sqlDB)
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	slog.Info("SQLite database ready", "path", path)
	return sqlDB, nil
}

func closeQuietly(sqlDB *sql.DB) {
	if err := sqlDB.Close(); err != nil {
		slog.Error("Failed to close sqlite database", "error", err)
	}
}
