package host

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outputLine struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
	Error *string         `json:"error"`
	Event string          `json:"event"`
}

func parseLines(t *testing.T, out string) []outputLine {
	t.Helper()
	var lines []outputLine
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var l outputLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l), "line %q", sc.Text())
		lines = append(lines, l)
	}
	return lines
}

func cmd(id, name, args string) Command {
	c := Command{ID: id, Cmd: name}
	if args != "" {
		c.Args = json.RawMessage(args)
	}
	return c
}

func TestBridge_DispatchEntryCommands(t *testing.T) {
	e, _ := startEngine(t)
	var out bytes.Buffer
	b := NewBridge(e, newService(e), &out, discardLogger())
	ctx := context.Background()

	r := b.Dispatch(ctx, cmd("1", CmdCreateEntry, `{"content":"hello","pinned":true}`))
	require.Nil(t, r.Error)
	raw, err := json.Marshal(r.Data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"content":"hello"`)
	assert.Contains(t, string(raw), `"pinned":true`)

	r = b.Dispatch(ctx, cmd("2", CmdUpdateEntry, `{"id":1,"content":"world"}`))
	require.Nil(t, r.Error)

	r = b.Dispatch(ctx, cmd("3", CmdReadEntry, `{"id":1}`))
	require.Nil(t, r.Error)
	raw, _ = json.Marshal(r.Data)
	assert.Contains(t, string(raw), `"content":"world"`)

	r = b.Dispatch(ctx, cmd("4", CmdReadEntries, `{"s":"WOR","sort":"asc","per_page":5}`))
	require.Nil(t, r.Error)
	raw, _ = json.Marshal(r.Data)
	assert.Contains(t, string(raw), `"total":1`)
	assert.Contains(t, string(raw), `"per_page":5`)

	r = b.Dispatch(ctx, cmd("5", CmdDumpEntries, ""))
	assert.Nil(t, r.Error)
	raw, _ = json.Marshal(r.Data)
	assert.JSONEq(t, `{}`, string(raw))

	r = b.Dispatch(ctx, cmd("6", CmdDeleteEntry, `{"id":1}`))
	assert.Nil(t, r.Error)
	assert.NotNil(t, r.Data)

	r = b.Dispatch(ctx, cmd("7", CmdReadEntry, `{"id":1}`))
	require.NotNil(t, r.Error)
	assert.Equal(t, "entry not found: id 1", *r.Error)
	assert.Equal(t, "7", r.ID)
}

func TestBridge_DispatchErrors(t *testing.T) {
	e, _ := startEngine(t)
	b := NewBridge(e, newService(e), &bytes.Buffer{}, discardLogger())
	ctx := context.Background()

	r := b.Dispatch(ctx, cmd("1", "launch_rockets", ""))
	require.NotNil(t, r.Error)
	assert.Equal(t, `unknown command "launch_rockets"`, *r.Error)

	r = b.Dispatch(ctx, cmd("2", CmdReadEntry, `{"id":"one"}`))
	require.NotNil(t, r.Error)
	assert.Contains(t, *r.Error, "invalid arguments for read_entry")

	r = b.Dispatch(ctx, cmd("3", CmdReadEntries, `{"sort":"sideways"}`))
	require.NotNil(t, r.Error)
	assert.Contains(t, *r.Error, "invalid argument")
}

func TestBridge_ShutdownThenRead(t *testing.T) {
	e, s := startEngine(t)
	b := NewBridge(e, newService(e), &bytes.Buffer{}, discardLogger())
	ctx := context.Background()

	r := b.Dispatch(ctx, cmd("1", CmdShutdown, ""))
	assert.Nil(t, r.Error)

	r = b.Dispatch(ctx, cmd("2", CmdReadEntry, `{"id":1}`))
	require.NotNil(t, r.Error)
	assert.Equal(t, "no response received", *r.Error)

	waitDone(t, e)
	assert.Equal(t, 1, s.CloseCalls())
}

func TestBridge_CloseWindowCommand(t *testing.T) {
	e, s := startEngine(t)
	var out bytes.Buffer
	b := NewBridge(e, newService(e), &out, discardLogger())
	ctx := context.Background()

	r := b.Dispatch(ctx, cmd("1", CmdCloseWindow, ""))
	assert.Equal(t, "prevent_close", r.Data)

	r = b.Dispatch(ctx, cmd("2", CmdCloseWindow, ""))
	assert.Equal(t, "allow_close", r.Data)

	waitDone(t, e)
	assert.Equal(t, 1, s.CloseCalls())
	assert.Equal(t, 1, strings.Count(out.String(), EventWindowClosed))
}

func TestBridge_ServeConcurrentCommands(t *testing.T) {
	e, s := startEngine(t)
	var out bytes.Buffer
	b := NewBridge(e, newService(e), &out, discardLogger())

	const n = 20
	var in strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&in, `{"id":"c%d","cmd":"create_entry","args":{"content":"entry %d"}}`+"\n", i, i)
	}
	in.WriteString("\n")
	in.WriteString("not json\n")

	require.NoError(t, b.Serve(context.Background(), strings.NewReader(in.String())))
	waitDone(t, e)

	lines := parseLines(t, out.String())
	require.Len(t, lines, n+2, "n replies, one parse error, one close event")

	ids := make(map[string]bool)
	var parseErrors int
	for _, l := range lines[:len(lines)-1] {
		if l.ID == "" {
			require.NotNil(t, l.Error)
			assert.Contains(t, *l.Error, "invalid command")
			parseErrors++
			continue
		}
		assert.Nil(t, l.Error, "command %s failed", l.ID)
		assert.NotEqual(t, "null", string(l.Data))
		ids[l.ID] = true
	}
	assert.Equal(t, 1, parseErrors)
	assert.Len(t, ids, n)

	assert.Equal(t, EventWindowClosed, lines[len(lines)-1].Event, "end of input closes the window last")
	assert.Equal(t, 0, s.Overlaps())
	assert.Equal(t, 1, s.CloseCalls())
}

func TestBridge_ServeEOFAfterShutdown(t *testing.T) {
	e, s := startEngine(t)
	var out bytes.Buffer
	b := NewBridge(e, newService(e), &out, discardLogger())

	in := `{"id":"1","cmd":"shutdown"}` + "\n"
	require.NoError(t, b.Serve(context.Background(), strings.NewReader(in)))
	waitDone(t, e)

	lines := parseLines(t, out.String())
	require.Len(t, lines, 1, "window close after shutdown is absorbed")
	assert.Equal(t, "1", lines[0].ID)
	assert.Equal(t, 1, s.CloseCalls())
}
