package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/billing-sync-server/internal/sync/state"
	"github.com/stacklok/billing-sync-server/internal/versions"
)

func writeConfig(t *testing.T, storage string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "sync:\n  batchSize: 10\n  syncIntervalSeconds: 30\n" + storage
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand_JSON(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "", "version", "--format", "json")
	require.NoError(t, err)

	var info versions.VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestNotifyCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeConfig(t, fmt.Sprintf("storage:\n  type: file\n  file:\n    dir: %s\n", dir))

	out, err := execute(t, "", "notify", "--config", configPath, "cus_1", "cus_2", "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1\ncus_2\ncus_1\n", out)

	store, err := state.NewFileStore(dir, "default")
	require.NoError(t, err)

	work, err := store.Get(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), work.Count)

	wake, err := store.CurrentWake(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, wake, "the first notification arms the wake timer")
}

func TestNotifyCommand_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeConfig(t, fmt.Sprintf("storage:\n  type: file\n  file:\n    dir: %s\n", dir))

	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{
			name:   "no entity",
			args:   []string{"notify", "--config", configPath},
			errMsg: "requires at least 1 arg",
		},
		{
			name:   "blank entity",
			args:   []string{"notify", "--config", configPath, "  "},
			errMsg: "entity",
		},
		{
			name:   "missing config flag",
			args:   []string{"notify", "cus_1"},
			errMsg: "config",
		},
		{
			name:   "missing config file",
			args:   []string{"notify", "--config", filepath.Join(dir, "absent.yaml"), "cus_1"},
			errMsg: "failed to load configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestMigrateUpCommand_SQLite(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "sync", "billing-sync.db")
	configPath := writeConfig(t, fmt.Sprintf("storage:\n  type: sqlite\n  sqlite:\n    path: %s\n", dbPath))

	_, err := execute(t, "", "migrate", "up", "--config", configPath)
	require.NoError(t, err)
	assert.FileExists(t, dbPath)

	// Running again is a no-op
	_, err = execute(t, "", "migrate", "up", "--config", configPath)
	require.NoError(t, err)
}

func TestMigrateCommands_RejectFileStorage(t *testing.T) {
	t.Parallel()

	configPath := writeConfig(t, fmt.Sprintf("storage:\n  type: file\n  file:\n    dir: %s\n", t.TempDir()))

	_, err := execute(t, "", "migrate", "up", "--config", configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema to migrate")

	_, err = execute(t, "", "migrate", "down", "--config", configPath, "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only supported for database storage")
}

func TestReadYes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{input: "yes\n", want: true},
		{input: "Y\n", want: true},
		{input: " y ", want: true},
		{input: "no\n", want: false},
		{input: "", want: false},
		{input: "maybe\n", want: false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, readYes(strings.NewReader(tt.input)))
		})
	}
}
