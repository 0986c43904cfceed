package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	gosync "sync"

	"github.com/stacklok/billing-sync-server/internal/config"
	"github.com/stacklok/billing-sync-server/internal/status"
	"github.com/stacklok/billing-sync-server/internal/sync/state"
	"github.com/stacklok/billing-sync-server/internal/sync/writer"
)

// FileFactory creates components that keep their state as JSON documents
// in one directory. It serves a single process only.
type FileFactory struct {
	config  *config.Config
	baseDir string

	// The file store caches its document, so every caller must share one instance
	storeOnce gosync.Once
	store     state.Store
	storeErr  error
}

var _ Factory = (*FileFactory)(nil)

// NewFileFactory creates a new file-based storage factory, creating the
// storage directory if needed.
func NewFileFactory(cfg *config.Config) (*FileFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	baseDir := cfg.GetFileStorageDir()
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", baseDir, err)
	}

	slog.Info("Creating file-based storage factory", "base_dir", baseDir)

	return &FileFactory{
		config:  cfg,
		baseDir: baseDir,
	}, nil
}

// CreateStore returns the file-backed pending work store and wake timer
func (f *FileFactory) CreateStore(_ context.Context) (state.Store, error) {
	f.storeOnce.Do(func() {
		f.store, f.storeErr = state.NewFileStore(f.baseDir, f.config.GetShardKey())
	})
	return f.store, f.storeErr
}

// CreateStateWriter creates the file-backed billing state cache
func (f *FileFactory) CreateStateWriter(_ context.Context) (writer.StateWriter, error) {
	return writer.NewFileStateWriter(f.baseDir)
}

// CreateStatusPersistence stores pass status next to the scheduling state
func (f *FileFactory) CreateStatusPersistence(_ context.Context) (status.StatusPersistence, error) {
	return status.NewFileStatusPersistence(f.baseDir), nil
}

// Cleanup is a no-op; every write is already on disk
func (*FileFactory) Cleanup() {
	slog.Debug("Cleaning up file storage factory (no-op)")
}
