// Package storage creates the storage-dependent components of the server as
// a family: the scheduling state store, the billing state writer and the
// pass status persistence always share one backend.
package storage

import (
	"context"
	"fmt"

	"github.com/stacklok/billing-sync-server/internal/config"
	"github.com/stacklok/billing-sync-server/internal/status"
	"github.com/stacklok/billing-sync-server/internal/sync/state"
	"github.com/stacklok/billing-sync-server/internal/sync/writer"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates storage-dependent components as a family.
//
// It also owns the lifecycle of the underlying resources (connection pools,
// database handles), which Cleanup releases.
type Factory interface {
	// CreateStore returns the pending work store and wake timer of the configured shard
	CreateStore(ctx context.Context) (state.Store, error)

	// CreateStateWriter returns the local billing state cache
	CreateStateWriter(ctx context.Context) (writer.StateWriter, error)

	// CreateStatusPersistence returns where pass status survives restarts,
	// or nil when the backend keeps pass status in memory only.
	CreateStatusPersistence(ctx context.Context) (status.StatusPersistence, error)

	// Cleanup releases any resources held by this factory
	Cleanup()
}

// NewStorageFactory creates the factory matching the configured storage type.
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...Option) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg, opts...)
	case config.StorageTypeSQLite:
		return NewSQLiteFactory(ctx, cfg)
	case config.StorageTypeFile:
		return NewFileFactory(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
}
