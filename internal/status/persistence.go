// Package status tracks and persists the outcome of batch passes.
package status

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/stacklok/billing-sync-server/internal/jsonfile"
)

// StatusFileName is the per-shard file holding the last pass outcome
const StatusFileName = "status.json"

// StatusPersistence keeps the last pass outcome of each shard across restarts
//
//nolint:revive // status.Status would read worse at call sites
type StatusPersistence interface {
	SaveStatus(ctx context.Context, shardKey string, status *PassStatus) error

	// LoadStatus returns an idle PassStatus for a shard that never completed a pass
	LoadStatus(ctx context.Context, shardKey string) (*PassStatus, error)
}

// NewFileStatusPersistence stores <dir>/<shard>/status.json
func NewFileStatusPersistence(dir string) StatusPersistence {
	return shardFiles(dir)
}

type shardFiles string

func (d shardFiles) file(shardKey string) string {
	return filepath.Join(string(d), shardKey, StatusFileName)
}

func (d shardFiles) SaveStatus(_ context.Context, shardKey string, status *PassStatus) error {
	if err := jsonfile.Write(d.file(shardKey), status); err != nil {
		return fmt.Errorf("failed to save pass status of shard %q: %w", shardKey, err)
	}
	return nil
}

func (d shardFiles) LoadStatus(_ context.Context, shardKey string) (*PassStatus, error) {
	loaded := &PassStatus{Phase: PassPhaseIdle}
	if _, err := jsonfile.Read(d.file(shardKey), loaded); err != nil {
		return nil, fmt.Errorf("failed to load pass status of shard %q: %w", shardKey, err)
	}
	return loaded, nil
}
