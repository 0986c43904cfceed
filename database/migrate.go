package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
)

// MigrateUp applies all pending migrations to the PostgreSQL database.
func MigrateUp(ctx context.Context, connString string) error {
	m, err := GetMigrate(connString)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	return runWithContext(ctx, m, m.Up)
}

// MigrateDown rolls back numSteps migrations, or all of them when numSteps is 0.
func MigrateDown(ctx context.Context, connString string, numSteps uint) error {
	m, err := GetMigrate(connString)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if numSteps == 0 {
		return runWithContext(ctx, m, m.Down)
	}
	return runWithContext(ctx, m, func() error {
		return m.Steps(-int(numSteps)) //nolint:gosec // step counts are small
	})
}

// GetVersion returns the current schema version and whether it is dirty.
func GetVersion(connString string) (uint, bool, error) {
	m, err := GetMigrate(connString)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrate(m)

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// MigrateUpSQLite applies all pending migrations to an open SQLite database.
// The database stays open.
func MigrateUpSQLite(ctx context.Context, db *sql.DB) error {
	m, err := GetSQLiteMigrate(db)
	if err != nil {
		return err
	}
	return runWithContext(ctx, m, m.Up)
}

// runWithContext runs fn, asking migrate to stop gracefully if ctx is cancelled.
// A schema that is already current is not an error.
func runWithContext(ctx context.Context, m *migrate.Migrate, fn func() error) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			select {
			case m.GracefulStop <- true:
			default:
			}
		case <-done:
		}
	}()

	if err := fn(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func closeMigrate(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		slog.Warn("Failed to close migrator", "source_error", srcErr, "database_error", dbErr)
	}
}
