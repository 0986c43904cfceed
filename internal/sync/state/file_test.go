package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	t.Parallel()

	runStoreContract(t, func(t *testing.T) Store {
		t.Helper()
		s, err := NewFileStore(t.TempDir(), "default")
		require.NoError(t, err)
		return s
	})
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir, "default")
	require.NoError(t, err)

	_, err = s.Upsert(ctx, "cus_1", baseTime)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "cus_1", baseTime)
	require.NoError(t, err)
	_, err = s.ArmIfIdle(ctx, baseTime.Add(10))
	require.NoError(t, err)

	// A new instance over the same directory behaves like a restarted process
	reopened, err := NewFileStore(dir, "default")
	require.NoError(t, err)

	w, err := reopened.Get(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.Count)

	wake, err := reopened.CurrentWake(ctx)
	require.NoError(t, err)
	require.NotNil(t, wake)
	assert.True(t, baseTime.Add(10).Equal(*wake))
}

func TestFileStoreShardsAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	a, err := NewFileStore(dir, "a")
	require.NoError(t, err)
	b, err := NewFileStore(dir, "b")
	require.NoError(t, err)

	_, err = a.Upsert(ctx, "cus_1", baseTime)
	require.NoError(t, err)

	depth, err := b.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestFileStoreFailedWriteLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir, "default")
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "cus_1", baseTime)
	require.NoError(t, err)

	// Replace the shard directory with a file so the next write fails
	shardDir := filepath.Join(dir, "default")
	require.NoError(t, os.RemoveAll(shardDir))
	require.NoError(t, os.WriteFile(shardDir, []byte("x"), 0600))

	_, err = s.Upsert(ctx, "cus_1", baseTime)
	require.Error(t, err)

	w, err := s.Get(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Count)
}

func TestNewFileStoreCorruptDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "default"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default", StateFileName), []byte("{"), 0600))

	_, err := NewFileStore(dir, "default")
	require.Error(t, err)
}
