package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diary/internal/diary"
)

func TestEntryLifecycle(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, nil, "--config", cfg, "entry", "create", "Morning", "walk", "--pinned")
	require.NoError(t, err)
	assert.Contains(t, out, "#1 [pinned]")
	assert.Contains(t, out, "Morning walk")

	out, err = execute(t, nil, "--config", cfg, "entry", "create", "Grocery list")
	require.NoError(t, err)
	assert.Contains(t, out, "#2 ")

	out, err = execute(t, nil, "--config", cfg, "entry", "get", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Morning walk")

	out, err = execute(t, nil, "--config", cfg, "entry", "list", "--sort", "asc")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Morning walk"), strings.Index(out, "Grocery list"))
	assert.Contains(t, out, "page 1/1 (2 entries)")

	out, err = execute(t, nil, "--config", cfg, "entry", "list", "--pinned=false")
	require.NoError(t, err)
	assert.NotContains(t, out, "Morning walk")
	assert.Contains(t, out, "Grocery list")

	out, err = execute(t, nil, "--config", cfg, "entry", "update", "2", "--content", "Grocery list: eggs")
	require.NoError(t, err)
	assert.Contains(t, out, "(updated ")
	assert.Contains(t, out, "Grocery list: eggs")

	out, err = execute(t, nil, "--config", cfg, "entry", "delete", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Entry 2 deleted")

	out, err = execute(t, nil, "--config", cfg, "entry", "get", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeRequestFailed+"]: entry not found: id 2")
}

func TestEntryJSONFormat(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, nil, "--config", cfg, "--format", "json", "entry", "create", "hello")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   diary.Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(1), resp.Data.ID)
	assert.Equal(t, "hello", resp.Data.Content)
	assert.Nil(t, resp.Data.UpdatedAt)

	out, err = execute(t, nil, "--config", cfg, "--format", "json", "entry", "get", "42")
	require.Error(t, err)
	var errResp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &errResp))
	assert.Equal(t, "error", errResp.Status)
	require.NotNil(t, errResp.Error)
	assert.Equal(t, ErrCodeRequestFailed, errResp.Error.Code)
	assert.Equal(t, "entry not found: id 42", errResp.Error.Message)
}

func TestEntryPebbleBackend(t *testing.T) {
	dbURL := "pebble://" + filepath.Join(t.TempDir(), "data")
	cfg := writeConfig(t, dbURL)

	_, err := execute(t, nil, "--config", cfg, "entry", "create", "stored in pebble")
	require.NoError(t, err)

	out, err := execute(t, nil, "--config", cfg, "entry", "list", "--search", "PEBBLE")
	require.NoError(t, err)
	assert.Contains(t, out, "stored in pebble")
}

func TestEntryDump(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := execute(t, nil, "--config", cfg, "entry", "create", "dump me")
	require.NoError(t, err)

	out, err := execute(t, nil, "--config", cfg, "entry", "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Entries dumped")

	files, err := os.ReadDir(filepath.Join(filepath.Dir(cfg), "dumps"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ".json", filepath.Ext(files[0].Name()))
}

func TestEntryInvalidID(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := execute(t, nil, "--config", cfg, "entry", "get", "abc")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid entry id")
}

func TestEntryInvalidSort(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := execute(t, nil, "--config", cfg, "entry", "list", "--sort", "sideways")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid --sort")
}

func TestEntryStoreOpenFailure(t *testing.T) {
	cfg := writeConfig(t, "sqlite://"+filepath.Join(t.TempDir(), "missing", "dir", "diary.db"))

	_, err := execute(t, nil, "--config", cfg, "entry", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestEntryInvalidConfig(t *testing.T) {
	cfg := writeConfig(t, "mysql://elsewhere")

	_, err := execute(t, nil, "--config", cfg, "entry", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid config")
}
