package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/billing-sync-server/internal/db"
)

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	runStoreContract(t, func(t *testing.T) Store {
		t.Helper()
		sqlDB, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = sqlDB.Close() })
		return NewSQLiteStore(sqlDB, "default")
	})
}

func TestSQLiteStoreShardsAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sqlDB, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	a := NewSQLiteStore(sqlDB, "a")
	b := NewSQLiteStore(sqlDB, "b")

	_, err = a.Upsert(ctx, "cus_1", baseTime)
	require.NoError(t, err)
	_, err = a.ArmIfIdle(ctx, baseTime)
	require.NoError(t, err)

	depth, err := b.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	wake, err := b.CurrentWake(ctx)
	require.NoError(t, err)
	assert.Nil(t, wake)

	armed, err := b.ArmIfIdle(ctx, baseTime)
	require.NoError(t, err)
	assert.True(t, armed)
}

func TestSQLiteStoreClaimsWakeOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sqlDB, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	first := NewSQLiteStore(sqlDB, "shared")
	second := NewSQLiteStore(sqlDB, "shared")

	armed, err := first.ArmIfIdle(ctx, baseTime)
	require.NoError(t, err)
	require.True(t, armed)

	claimed, err := first.ClaimDue(ctx, baseTime)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.True(t, baseTime.Equal(*claimed))

	again, err := second.ClaimDue(ctx, baseTime)
	require.NoError(t, err)
	assert.Nil(t, again, "a claimed wake cannot be claimed twice")

	armed, err = second.ArmIfIdle(ctx, baseTime)
	require.NoError(t, err)
	assert.True(t, armed, "a claimed slot is idle again")
}
