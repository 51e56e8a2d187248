package host

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/diary/internal/command"
	"github.com/roach88/diary/internal/diary"
	"github.com/roach88/diary/internal/engine"
)

// Bridge command names. The entry commands share their names with the
// engine operations.
const (
	CmdCreateEntry = engine.OpCreateEntry
	CmdReadEntry   = engine.OpReadEntry
	CmdReadEntries = engine.OpReadEntries
	CmdUpdateEntry = engine.OpUpdateEntry
	CmdDeleteEntry = engine.OpDeleteEntry
	CmdDumpEntries = engine.OpDumpEntries
	CmdShutdown    = engine.OpShutdown
	CmdCloseWindow = "close_window"
)

// maxLineSize bounds a single command line.
const maxLineSize = 1 << 20

// Command is one line read by the bridge.
type Command struct {
	ID   string          `json:"id"`
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Reply is one line written by the bridge in answer to a Command.
type Reply struct {
	ID    string  `json:"id"`
	Data  any     `json:"data"`
	Error *string `json:"error"`
}

// Event is written when the bridge's window closes.
type Event struct {
	Event string `json:"event"`
}

// EventWindowClosed is written once the window has been closed.
const EventWindowClosed = "window_closed"

// Bridge serves newline-delimited JSON commands against a Service.
//
// Each command runs in its own goroutine, the way concurrent UI invocations
// do, so replies may come back in a different order than the commands; the
// id ties them together. Writes to the output are serialized.
//
// The bridge is also the Window of its Lifecycle: closing it writes a
// window_closed event.
type Bridge struct {
	svc       *command.Service
	lifecycle *Lifecycle
	logger    *slog.Logger

	mu  sync.Mutex
	out *json.Encoder

	wg sync.WaitGroup
}

// NewBridge creates a bridge that answers on out. A nil logger uses
// slog.Default().
func NewBridge(e *engine.Engine, svc *command.Service, out io.Writer, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		svc:    svc,
		logger: logger,
		out:    json.NewEncoder(out),
	}
	b.lifecycle = NewLifecycle(e, b, logger)
	return b
}

// Lifecycle returns the close hook bound to this bridge.
func (b *Bridge) Lifecycle() *Lifecycle {
	return b.lifecycle
}

// Close implements Window.
func (b *Bridge) Close() error {
	return b.write(Event{Event: EventWindowClosed})
}

// Serve reads commands from in until EOF or a read error. Commands still
// running are waited for. Reaching the end of input counts as a window close
// request.
func (b *Bridge) Serve(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var c Command
		if err := json.Unmarshal(line, &c); err != nil {
			b.writeReply(Reply{Error: errorString(fmt.Errorf("invalid command: %w", err))})
			continue
		}

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.writeReply(b.Dispatch(ctx, c))
		}()
	}
	err := scanner.Err()

	b.wg.Wait()
	b.logger.Debug("bridge input closed")
	b.lifecycle.CloseRequested()

	if err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	return nil
}

type createArgs struct {
	Content string `json:"content"`
	Pinned  *bool  `json:"pinned"`
}

type idArgs struct {
	ID int64 `json:"id"`
}

type readEntriesArgs struct {
	Page      *int64  `json:"page"`
	PerPage   *int64  `json:"per_page"`
	Sort      string  `json:"sort"`
	Pinned    *bool   `json:"pinned"`
	Substring *string `json:"substring"`
	S         *string `json:"s"`
}

type updateArgs struct {
	ID      int64   `json:"id"`
	Content *string `json:"content"`
	Pinned  *bool   `json:"pinned"`
}

// Dispatch runs one command and returns its reply.
func (b *Bridge) Dispatch(ctx context.Context, c Command) Reply {
	switch c.Cmd {
	case CmdCreateEntry:
		var a createArgs
		if err := decodeArgs(c, &a); err != nil {
			return errorReply(c.ID, err)
		}
		pinned := a.Pinned != nil && *a.Pinned
		return fromResponse(c.ID, b.svc.CreateEntry(ctx, a.Content, pinned))

	case CmdReadEntry:
		var a idArgs
		if err := decodeArgs(c, &a); err != nil {
			return errorReply(c.ID, err)
		}
		return fromResponse(c.ID, b.svc.ReadEntry(ctx, a.ID))

	case CmdReadEntries:
		var a readEntriesArgs
		if err := decodeArgs(c, &a); err != nil {
			return errorReply(c.ID, err)
		}
		sort, err := diary.ParseSortOrder(a.Sort)
		if err != nil {
			return errorReply(c.ID, err)
		}
		q := diary.PageQuery{
			Page:      a.Page,
			PerPage:   a.PerPage,
			Sort:      sort,
			Pinned:    a.Pinned,
			Substring: a.Substring,
		}
		if q.Substring == nil {
			q.Substring = a.S
		}
		return fromResponse(c.ID, b.svc.ReadEntries(ctx, q))

	case CmdUpdateEntry:
		var a updateArgs
		if err := decodeArgs(c, &a); err != nil {
			return errorReply(c.ID, err)
		}
		patch := diary.EntryPatch{Content: a.Content, Pinned: a.Pinned}
		return fromResponse(c.ID, b.svc.UpdateEntry(ctx, a.ID, patch))

	case CmdDeleteEntry:
		var a idArgs
		if err := decodeArgs(c, &a); err != nil {
			return errorReply(c.ID, err)
		}
		return fromResponse(c.ID, b.svc.DeleteEntry(ctx, a.ID))

	case CmdDumpEntries:
		return fromResponse(c.ID, b.svc.DumpEntries(ctx))

	case CmdShutdown:
		return fromResponse(c.ID, b.svc.Shutdown(ctx))

	case CmdCloseWindow:
		return Reply{ID: c.ID, Data: b.lifecycle.CloseRequested().String()}

	default:
		return errorReply(c.ID, fmt.Errorf("unknown command %q", c.Cmd))
	}
}

func decodeArgs(c Command, v any) error {
	if len(c.Args) == 0 || string(c.Args) == "null" {
		return nil
	}
	if err := json.Unmarshal(c.Args, v); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", c.Cmd, err)
	}
	return nil
}

func fromResponse[T any](id string, r command.Response[T]) Reply {
	reply := Reply{ID: id, Error: r.Error}
	if r.Data != nil {
		reply.Data = r.Data
	}
	return reply
}

func errorReply(id string, err error) Reply {
	return Reply{ID: id, Error: errorString(err)}
}

func errorString(err error) *string {
	msg := err.Error()
	return &msg
}

func (b *Bridge) writeReply(r Reply) {
	if err := b.write(r); err != nil {
		b.logger.Error("write reply failed", "id", r.ID, "error", err)
	}
}

func (b *Bridge) write(v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.out.Encode(v)
}
