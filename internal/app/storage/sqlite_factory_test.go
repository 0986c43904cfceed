package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/billing-sync-server/internal/config"
	"github.com/stacklok/billing-sync-server/internal/sync/writer"
)

func sqliteConfig(path string) *config.Config {
	return &config.Config{
		Storage: &config.StorageConfig{
			Type:   config.StorageTypeSQLite,
			SQLite: &config.SQLiteStorageConfig{Path: path},
		},
	}
}

func TestNewSQLiteFactory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := NewSQLiteFactory(ctx, nil)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "nested", "billing-sync.db")
	factory, err := NewSQLiteFactory(ctx, sqliteConfig(path))
	require.NoError(t, err)
	t.Cleanup(factory.Cleanup)

	assert.FileExists(t, path)
}

func TestSQLiteFactory_StateSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "billing-sync.db")

	factory, err := NewSQLiteFactory(ctx, sqliteConfig(path))
	require.NoError(t, err)

	store, err := factory.CreateStore(ctx)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "cus_1", now)
	require.NoError(t, err)
	_, err = store.ArmIfIdle(ctx, now.Add(time.Minute))
	require.NoError(t, err)

	w, err := factory.CreateStateWriter(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Upsert(ctx, writer.ClearedState("cus_2", now)))

	persistence, err := factory.CreateStatusPersistence(ctx)
	require.NoError(t, err)
	assert.Nil(t, persistence)

	factory.Cleanup()

	reopened, err := NewSQLiteFactory(ctx, sqliteConfig(path))
	require.NoError(t, err)
	t.Cleanup(reopened.Cleanup)

	store, err = reopened.CreateStore(ctx)
	require.NoError(t, err)
	work, err := store.Get(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), work.Count)

	wake, err := store.CurrentWake(ctx)
	require.NoError(t, err)
	require.NotNil(t, wake)
	assert.True(t, now.Add(time.Minute).Equal(*wake))

	w, err = reopened.CreateStateWriter(ctx)
	require.NoError(t, err)
	got, err := w.Get(ctx, "cus_2")
	require.NoError(t, err)
	assert.True(t, got.IsCleared())
}
