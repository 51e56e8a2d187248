package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byID(lines []map[string]any) map[string]map[string]any {
	m := make(map[string]map[string]any)
	for _, l := range lines {
		if id, ok := l["id"].(string); ok {
			m[id] = l
		}
	}
	return m
}

func TestServeCommandsThenEOF(t *testing.T) {
	cfg := writeConfig(t, "")

	in := strings.NewReader(`{"id":"c1","cmd":"create_entry","args":{"content":"first","pinned":true}}
{"id":"c2","cmd":"create_entry","args":{"content":"second"}}
{"id":"u1","cmd":"rename_entry"}
`)
	out, err := execute(t, in, "--config", cfg, "serve")
	require.NoError(t, err)

	lines := jsonLines(t, out)
	require.Len(t, lines, 4)

	// window close event comes after every reply
	assert.Equal(t, "window_closed", lines[3]["event"])

	replies := byID(lines)
	for _, id := range []string{"c1", "c2"} {
		require.Contains(t, replies, id)
		assert.Nil(t, replies[id]["error"], id)
		assert.NotNil(t, replies[id]["data"], id)
	}
	require.Contains(t, replies, "u1")
	assert.Nil(t, replies["u1"]["data"])
	assert.Equal(t, `unknown command "rename_entry"`, replies["u1"]["error"])

	// a second run sees what the first one stored
	in = strings.NewReader(`{"id":"r1","cmd":"read_entries","args":{"sort":"ASC"}}` + "\n")
	out, err = execute(t, in, "--config", cfg, "serve")
	require.NoError(t, err)

	replies = byID(jsonLines(t, out))
	require.Contains(t, replies, "r1")
	page, ok := replies["r1"]["data"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, page["total"])
	entries := page["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].(map[string]any)["content"])
}

func TestServeShutdownCommand(t *testing.T) {
	cfg := writeConfig(t, "")

	in := strings.NewReader(`{"id":"s1","cmd":"shutdown"}` + "\n")
	out, err := execute(t, in, "--config", cfg, "serve")
	require.NoError(t, err)

	lines := jsonLines(t, out)
	require.Len(t, lines, 1, "shutdown wins, so end of input must not close the window again")
	assert.Equal(t, "s1", lines[0]["id"])
	assert.Nil(t, lines[0]["data"])
	assert.Nil(t, lines[0]["error"])
}

func TestServeCloseWindowCommand(t *testing.T) {
	cfg := writeConfig(t, "")

	in := strings.NewReader(`{"id":"w1","cmd":"close_window"}` + "\n")
	out, err := execute(t, in, "--config", cfg, "serve")
	require.NoError(t, err)

	lines := jsonLines(t, out)
	require.Len(t, lines, 2)

	var sawEvent bool
	for _, l := range lines {
		if l["event"] == "window_closed" {
			sawEvent = true
		}
		if l["id"] == "w1" {
			assert.Equal(t, "prevent_close", l["data"])
		}
	}
	assert.True(t, sawEvent)
}

func TestServeEmptyInput(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, strings.NewReader(""), "--config", cfg, "serve")
	require.NoError(t, err)

	lines := jsonLines(t, out)
	require.Len(t, lines, 1)
	assert.Equal(t, "window_closed", lines[0]["event"])
}

func TestServeInvalidConfig(t *testing.T) {
	cfg := writeConfig(t, "redis://nope")

	_, err := execute(t, strings.NewReader(""), "--config", cfg, "serve")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestServeRejectsArgs(t *testing.T) {
	_, err := execute(t, nil, "serve", "extra")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}
