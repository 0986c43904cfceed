package state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory returns a fresh, empty store for one subtest.
type storeFactory func(t *testing.T) Store

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

//nolint:thelper // We want to see these lines in the test output
func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("upsert creates then increments", func(t *testing.T) {
		s := newStore(t)

		w, err := s.Upsert(ctx, "cus_1", baseTime)
		require.NoError(t, err)
		assert.Equal(t, "cus_1", w.EntityID)
		assert.Equal(t, int64(1), w.Count)
		assert.True(t, baseTime.Equal(w.EnqueuedAt))

		w, err = s.Upsert(ctx, "cus_1", baseTime.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(2), w.Count)
		assert.True(t, baseTime.Equal(w.EnqueuedAt), "enqueued_at must not move on increment")

		depth, err := s.Depth(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), depth)
	})

	t.Run("concurrent upserts coalesce", func(t *testing.T) {
		s := newStore(t)

		const n = 20
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Upsert(ctx, "cus_burst", baseTime.Add(time.Duration(i)*time.Millisecond))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		w, err := s.Get(ctx, "cus_burst")
		require.NoError(t, err)
		assert.Equal(t, int64(n), w.Count)
	})

	t.Run("list oldest orders by enqueued_at then entity_id", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Upsert(ctx, "cus_c", baseTime.Add(2*time.Second))
		require.NoError(t, err)
		_, err = s.Upsert(ctx, "cus_b", baseTime)
		require.NoError(t, err)
		_, err = s.Upsert(ctx, "cus_a", baseTime)
		require.NoError(t, err)
		_, err = s.Upsert(ctx, "cus_d", baseTime.Add(time.Second))
		require.NoError(t, err)

		rows, err := s.ListOldest(ctx, 3)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "cus_a", rows[0].EntityID)
		assert.Equal(t, "cus_b", rows[1].EntityID)
		assert.Equal(t, "cus_d", rows[2].EntityID)

		rows, err = s.ListOldest(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, rows, 4)
	})

	t.Run("list oldest on empty store", func(t *testing.T) {
		s := newStore(t)

		rows, err := s.ListOldest(ctx, 5)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("delete if count matches", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Upsert(ctx, "cus_1", baseTime)
		require.NoError(t, err)

		deleted, err := s.DeleteIfCount(ctx, "cus_1", 1)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = s.Get(ctx, "cus_1")
		assert.ErrorIs(t, err, ErrPendingWorkNotFound)
	})

	t.Run("delete if count keeps row that changed", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Upsert(ctx, "cus_1", baseTime)
		require.NoError(t, err)
		// A notification arrives while the sync is in flight
		_, err = s.Upsert(ctx, "cus_1", baseTime.Add(time.Second))
		require.NoError(t, err)

		deleted, err := s.DeleteIfCount(ctx, "cus_1", 1)
		require.NoError(t, err)
		assert.False(t, deleted)

		w, err := s.Get(ctx, "cus_1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), w.Count)
	})

	t.Run("delete if count on missing row", func(t *testing.T) {
		s := newStore(t)

		deleted, err := s.DeleteIfCount(ctx, "cus_missing", 1)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("recreate after delete resets count and enqueued_at", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Upsert(ctx, "cus_1", baseTime)
		require.NoError(t, err)
		_, err = s.DeleteIfCount(ctx, "cus_1", 1)
		require.NoError(t, err)

		later := baseTime.Add(time.Hour)
		w, err := s.Upsert(ctx, "cus_1", later)
		require.NoError(t, err)
		assert.Equal(t, int64(1), w.Count)
		assert.True(t, later.Equal(w.EnqueuedAt))
	})

	t.Run("record failure keeps count", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Upsert(ctx, "cus_1", baseTime)
		require.NoError(t, err)

		failedAt := baseTime.Add(time.Minute)
		require.NoError(t, s.RecordFailure(ctx, "cus_1", "upstream unavailable", failedAt))
		require.NoError(t, s.RecordFailure(ctx, "cus_1", "still unavailable", failedAt.Add(time.Minute)))

		w, err := s.Get(ctx, "cus_1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), w.Count)
		assert.Equal(t, int64(2), w.Attempts)
		assert.Equal(t, "still unavailable", w.LastError)
		require.NotNil(t, w.LastAttemptAt)
		assert.True(t, failedAt.Add(time.Minute).Equal(*w.LastAttemptAt))

		// The snapshot count still matches, so a later success deletes the row
		deleted, err := s.DeleteIfCount(ctx, "cus_1", 1)
		require.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("record failure on missing row", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.RecordFailure(ctx, "cus_missing", "boom", baseTime))
	})

	t.Run("wake timer arm is idempotent", func(t *testing.T) {
		s := newStore(t)

		wake, err := s.CurrentWake(ctx)
		require.NoError(t, err)
		assert.Nil(t, wake)

		first := baseTime.Add(10 * time.Second)
		armed, err := s.ArmIfIdle(ctx, first)
		require.NoError(t, err)
		assert.True(t, armed)

		armed, err = s.ArmIfIdle(ctx, baseTime.Add(20*time.Second))
		require.NoError(t, err)
		assert.False(t, armed)

		wake, err = s.CurrentWake(ctx)
		require.NoError(t, err)
		require.NotNil(t, wake)
		assert.True(t, first.Equal(*wake), "an armed timer must never move")
	})

	t.Run("claim due only when due", func(t *testing.T) {
		s := newStore(t)

		at := baseTime.Add(10 * time.Second)
		_, err := s.ArmIfIdle(ctx, at)
		require.NoError(t, err)

		claimed, err := s.ClaimDue(ctx, baseTime)
		require.NoError(t, err)
		assert.Nil(t, claimed)

		claimed, err = s.ClaimDue(ctx, at)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.True(t, at.Equal(*claimed))

		wake, err := s.CurrentWake(ctx)
		require.NoError(t, err)
		assert.Nil(t, wake)

		claimed, err = s.ClaimDue(ctx, at.Add(time.Hour))
		require.NoError(t, err)
		assert.Nil(t, claimed, "a wake is claimed at most once")

		armed, err := s.ArmIfIdle(ctx, at.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, armed, "a claimed timer can be re-armed")
	})

	t.Run("claim due on never armed timer", func(t *testing.T) {
		s := newStore(t)

		claimed, err := s.ClaimDue(ctx, baseTime)
		require.NoError(t, err)
		assert.Nil(t, claimed)
	})

	t.Run("concurrent claims have one winner", func(t *testing.T) {
		s := newStore(t)

		_, err := s.ArmIfIdle(ctx, baseTime)
		require.NoError(t, err)

		const n = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := s.ClaimDue(ctx, baseTime.Add(time.Second))
				assert.NoError(t, err)
				if claimed != nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})

	t.Run("large batch listing", func(t *testing.T) {
		s := newStore(t)

		for i := range 30 {
			_, err := s.Upsert(ctx, fmt.Sprintf("cus_%02d", i), baseTime.Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
		}

		rows, err := s.ListOldest(ctx, 11)
		require.NoError(t, err)
		require.Len(t, rows, 11)
		assert.Equal(t, "cus_00", rows[0].EntityID)
		assert.Equal(t, "cus_10", rows[10].EntityID)
	})
}
