package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/stacklok/billing-sync-server/internal/config"
	"github.com/stacklok/billing-sync-server/internal/db"
	"github.com/stacklok/billing-sync-server/internal/status"
	"github.com/stacklok/billing-sync-server/internal/sync/state"
	"github.com/stacklok/billing-sync-server/internal/sync/writer"
)

// SQLiteFactory creates components backed by a single SQLite file.
type SQLiteFactory struct {
	config *config.Config
	db     *sql.DB
}

var _ Factory = (*SQLiteFactory)(nil)

// NewSQLiteFactory opens (and migrates) the configured SQLite database
func NewSQLiteFactory(ctx context.Context, cfg *config.Config) (*SQLiteFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	path := cfg.GetSQLitePath()
	slog.Info("Creating SQLite-backed storage factory", "path", path)

	sqlDB, err := db.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	return &SQLiteFactory{config: cfg, db: sqlDB}, nil
}

// CreateStore creates the SQLite-backed pending work store and wake timer
func (s *SQLiteFactory) CreateStore(_ context.Context) (state.Store, error) {
	return state.NewSQLiteStore(s.db, s.config.GetShardKey()), nil
}

// CreateStateWriter creates the SQLite-backed billing state cache
func (s *SQLiteFactory) CreateStateWriter(_ context.Context) (writer.StateWriter, error) {
	return writer.NewSQLiteStateWriter(s.db), nil
}

// CreateStatusPersistence returns nil; pass status is kept in memory
func (*SQLiteFactory) CreateStatusPersistence(_ context.Context) (status.StatusPersistence, error) {
	return nil, nil
}

// Cleanup closes the database handle
func (s *SQLiteFactory) Cleanup() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		slog.Error("Failed to close sqlite database", "error", err)
	}
}
