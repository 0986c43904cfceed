package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/billing-sync-server/database"
	"github.com/stacklok/billing-sync-server/internal/config"
	"github.com/stacklok/billing-sync-server/internal/sync/writer"
)

func databaseConfig(t *testing.T, pool *pgxpool.Pool) *config.DatabaseConfig {
	t.Helper()

	connCfg := pool.Config().ConnConfig
	passwordFile := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte(connCfg.Password+"\n"), 0600))

	return &config.DatabaseConfig{
		Host:         connCfg.Host,
		Port:         int(connCfg.Port),
		User:         connCfg.User,
		PasswordFile: passwordFile,
		Database:     connCfg.Database,
		SSLMode:      "disable",
	}
}

func TestNewDatabaseFactory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := database.NewTestPostgres(t)

	tests := []struct {
		name   string
		cfg    func() *config.Config
		errMsg string
	}{
		{
			name: "valid config",
			cfg: func() *config.Config {
				return &config.Config{Database: databaseConfig(t, pool)}
			},
		},
		{
			name: "valid config with pool settings",
			cfg: func() *config.Config {
				dbCfg := databaseConfig(t, pool)
				dbCfg.MaxOpenConns = 10
				dbCfg.MaxIdleConns = 2
				dbCfg.ConnMaxLifetime = "1h"
				return &config.Config{Database: dbCfg}
			},
		},
		{
			name:   "nil config",
			cfg:    func() *config.Config { return nil },
			errMsg: "config cannot be nil",
		},
		{
			name:   "missing database section",
			cfg:    func() *config.Config { return &config.Config{} },
			errMsg: "database configuration is required",
		},
		{
			name: "invalid lifetime",
			cfg: func() *config.Config {
				dbCfg := databaseConfig(t, pool)
				dbCfg.ConnMaxLifetime = "forever"
				return &config.Config{Database: dbCfg}
			},
			errMsg: "failed to parse connMaxLifetime",
		},
		{
			name: "missing password",
			cfg: func() *config.Config {
				dbCfg := databaseConfig(t, pool)
				dbCfg.PasswordFile = filepath.Join(t.TempDir(), "absent")
				return &config.Config{Database: dbCfg}
			},
			errMsg: "failed to read database password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			factory, err := NewDatabaseFactory(ctx, tt.cfg())
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			t.Cleanup(factory.Cleanup)
			assert.NotNil(t, factory.Pool())
		})
	}
}

func TestDatabaseFactory_ComponentsShareDatabase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := database.NewTestPostgres(t)

	cfg := &config.Config{ShardKey: "eu", Database: databaseConfig(t, pool)}
	factory, err := NewDatabaseFactory(ctx, cfg, WithInstanceID("replica-a"))
	require.NoError(t, err)
	t.Cleanup(factory.Cleanup)

	store, err := factory.CreateStore(ctx)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err = store.Upsert(ctx, "cus_1", now)
	require.NoError(t, err)
	armed, err := store.ArmIfIdle(ctx, now)
	require.NoError(t, err)
	assert.True(t, armed)

	// A second store for the same shard sees the same rows
	other, err := factory.CreateStore(ctx)
	require.NoError(t, err)
	depth, err := other.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	w, err := factory.CreateStateWriter(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Upsert(ctx, writer.ClearedState("cus_1", now)))
	got, err := w.Get(ctx, "cus_1")
	require.NoError(t, err)
	assert.True(t, got.IsCleared())

	persistence, err := factory.CreateStatusPersistence(ctx)
	require.NoError(t, err)
	assert.Nil(t, persistence)
}
