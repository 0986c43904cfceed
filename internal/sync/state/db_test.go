package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/billing-sync-server/database"
	"github.com/stacklok/billing-sync-server/internal/db/sqlc"
)

func TestDBStore(t *testing.T) {
	t.Parallel()

	pool := database.NewTestPostgres(t)

	// Every subtest gets its own shard, which isolates it within one database
	runStoreContract(t, func(t *testing.T) Store {
		t.Helper()
		return NewDBStore(pool, t.Name(), "instance-1")
	})
}

func TestDBStoreRecordsClaimant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := database.NewTestPostgres(t)

	first := NewDBStore(pool, "shared", "replica-a")
	second := NewDBStore(pool, "shared", "replica-b")

	armed, err := first.ArmIfIdle(ctx, baseTime)
	require.NoError(t, err)
	assert.True(t, armed)

	armed, err = second.ArmIfIdle(ctx, baseTime.Add(1))
	require.NoError(t, err)
	assert.False(t, armed)

	claimed, err := second.ClaimDue(ctx, baseTime)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	claimed, err = first.ClaimDue(ctx, baseTime)
	require.NoError(t, err)
	assert.Nil(t, claimed)

	var claimedBy string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT claimed_by FROM wake_timer WHERE shard_key = $1`, "shared").Scan(&claimedBy))
	assert.Equal(t, "replica-b", claimedBy)

	depth, err := sqlc.New(pool).CountPendingWork(ctx, "shared")
	require.NoError(t, err)
	assert.Zero(t, depth)
}
