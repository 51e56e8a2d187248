package engine

import (
	"context"
	"errors"

	"github.com/roach88/diary/internal/diary"
)

// Operation names, shared with logs, metrics and the host bridge.
const (
	OpCreateEntry = "create_entry"
	OpReadEntry   = "read_entry"
	OpReadEntries = "read_entries"
	OpUpdateEntry = "update_entry"
	OpDeleteEntry = "delete_entry"
	OpDumpEntries = "dump_entries"
	OpShutdown    = "shutdown"
)

// Result is what the loop writes to a reply channel: the store's value or
// its error, never both.
type Result[T any] struct {
	Value T
	Err   error
}

// Header carries the correlation id of a request. Submit fills ID when it
// is empty.
type Header struct {
	ID string
}

// RequestID returns the correlation id.
func (h *Header) RequestID() string { return h.ID }

func (h *Header) header() *Header { return h }

// Request is the closed set of messages the loop accepts. The variants are
// CreateEntry, ReadEntry, ReadEntries, UpdateEntry, DeleteEntry, DumpEntries
// and the internal shutdown marker.
//
// Every variant except the shutdown marker owns one reply channel, created
// by the caller with capacity 1 and written by the loop at most once.
type Request interface {
	// Op names the operation.
	Op() string

	// RequestID returns the correlation id.
	RequestID() string

	header() *Header

	// validate rejects a request before it is enqueued.
	validate() error

	// execute calls the store and writes the result to the reply channel.
	// It reports whether the reply was delivered and the store error, if any.
	execute(ctx context.Context, s Store) (delivered bool, err error)

	// reject writes err to the reply channel without calling the store.
	reject(err error) bool
}

var errNilReply = errors.New("reply channel is nil")

// CreateEntry inserts a new entry.
type CreateEntry struct {
	Header
	Content string
	Pinned  bool
	Reply   chan<- Result[diary.Entry]
}

// ReadEntry reads one entry by id.
type ReadEntry struct {
	Header
	ID    int64
	Reply chan<- Result[diary.Entry]
}

// ReadEntries reads one page of entries. Unset query fields take the store's
// defaults.
type ReadEntries struct {
	Header
	Query diary.PageQuery
	Reply chan<- Result[diary.Page]
}

// UpdateEntry applies a partial update to one entry.
type UpdateEntry struct {
	Header
	ID    int64
	Patch diary.EntryPatch
	Reply chan<- Result[diary.Entry]
}

// DeleteEntry removes one entry.
type DeleteEntry struct {
	Header
	ID    int64
	Reply chan<- Result[struct{}]
}

// DumpEntries writes every entry to a dump file.
type DumpEntries struct {
	Header
	Reply chan<- Result[struct{}]
}

// shutdownRequest stops the loop once every request queued before it has
// been served. Only Shutdown builds one.
type shutdownRequest struct {
	Header
}

func (r *CreateEntry) Op() string     { return OpCreateEntry }
func (r *ReadEntry) Op() string       { return OpReadEntry }
func (r *ReadEntries) Op() string     { return OpReadEntries }
func (r *UpdateEntry) Op() string     { return OpUpdateEntry }
func (r *DeleteEntry) Op() string     { return OpDeleteEntry }
func (r *DumpEntries) Op() string     { return OpDumpEntries }
func (r *shutdownRequest) Op() string { return OpShutdown }

func (r *CreateEntry) validate() error     { return checkReply(r.Reply) }
func (r *ReadEntry) validate() error       { return checkReply(r.Reply) }
func (r *ReadEntries) validate() error     { return checkReply(r.Reply) }
func (r *UpdateEntry) validate() error     { return checkReply(r.Reply) }
func (r *DeleteEntry) validate() error     { return checkReply(r.Reply) }
func (r *DumpEntries) validate() error     { return checkReply(r.Reply) }
func (r *shutdownRequest) validate() error { return nil }

func (r *CreateEntry) execute(ctx context.Context, s Store) (bool, error) {
	v, err := s.Create(ctx, r.Content, r.Pinned)
	return send(r.Reply, v, err), err
}

func (r *ReadEntry) execute(ctx context.Context, s Store) (bool, error) {
	v, err := s.ReadOne(ctx, r.ID)
	return send(r.Reply, v, err), err
}

func (r *ReadEntries) execute(ctx context.Context, s Store) (bool, error) {
	v, err := s.ReadPage(ctx, r.Query)
	return send(r.Reply, v, err), err
}

func (r *UpdateEntry) execute(ctx context.Context, s Store) (bool, error) {
	v, err := s.Update(ctx, r.ID, r.Patch)
	return send(r.Reply, v, err), err
}

func (r *DeleteEntry) execute(ctx context.Context, s Store) (bool, error) {
	err := s.Delete(ctx, r.ID)
	return send(r.Reply, struct{}{}, err), err
}

func (r *DumpEntries) execute(ctx context.Context, s Store) (bool, error) {
	err := s.DumpAll(ctx)
	return send(r.Reply, struct{}{}, err), err
}

func (r *shutdownRequest) execute(context.Context, Store) (bool, error) { return true, nil }

func (r *CreateEntry) reject(err error) bool { return send(r.Reply, diary.Entry{}, err) }
func (r *ReadEntry) reject(err error) bool   { return send(r.Reply, diary.Entry{}, err) }
func (r *ReadEntries) reject(err error) bool { return send(r.Reply, diary.Page{}, err) }
func (r *UpdateEntry) reject(err error) bool { return send(r.Reply, diary.Entry{}, err) }
func (r *DeleteEntry) reject(err error) bool { return send(r.Reply, struct{}{}, err) }
func (r *DumpEntries) reject(err error) bool { return send(r.Reply, struct{}{}, err) }
func (r *shutdownRequest) reject(error) bool { return true }

func checkReply[T any](ch chan<- Result[T]) error {
	if ch == nil {
		return errNilReply
	}
	return nil
}

// send writes a result without blocking. A full channel means the caller
// built it unbuffered and stopped listening, or it was already written.
func send[T any](ch chan<- Result[T], v T, err error) bool {
	if err != nil {
		var zero T
		v = zero
	}
	select {
	case ch <- Result[T]{Value: v, Err: err}:
		return true
	default:
		return false
	}
}
