package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/diary/internal/diary"
)

// Store is the handle the engine owns. Implementations need not be safe for
// concurrent use: the engine calls them from the Run goroutine only, and
// calls Close exactly once.
//
// store.SQLite and store.Pebble implement it.
type Store interface {
	Create(ctx context.Context, content string, pinned bool) (diary.Entry, error)
	ReadOne(ctx context.Context, id int64) (diary.Entry, error)
	ReadPage(ctx context.Context, q diary.PageQuery) (diary.Page, error)
	Update(ctx context.Context, id int64, patch diary.EntryPatch) (diary.Entry, error)
	Delete(ctx context.Context, id int64) error
	DumpAll(ctx context.Context) error
	Close() error
}

// Engine is the single owner of a Store.
//
// Thread-safety model:
//   - Submit, Call, Shutdown, CloseRequested: safe from any goroutine
//   - Run: called exactly once, from one goroutine
//
// INVARIANTS:
//   - Only the Run goroutine calls the store
//   - No store call starts after Close
//   - Close reaches the store exactly once
//   - Every request the loop dequeues gets exactly one reply attempt
type Engine struct {
	store   Store
	mb      *mailbox
	clock   *Clock
	ids     RequestIDGenerator
	metrics Metrics
	logger  *slog.Logger

	queueSize int

	running   atomic.Bool
	stopping  atomic.Bool // shutdown flag shared by every trigger
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithQueueSize sets the mailbox capacity.
//
// Default: 32 (DefaultQueueSize). Values below 1 keep the default.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		e.queueSize = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. Default: no-op.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithRequestIDs sets the generator used for requests submitted without an
// id. Default: UUIDv7Generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// New creates an Engine that owns s. The caller must not use s afterwards.
//
// Run must be started for requests to be served.
func New(s Store, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		clock:     NewClock(),
		ids:       UUIDv7Generator{},
		metrics:   nopMetrics{},
		logger:    slog.Default(),
		queueSize: DefaultQueueSize,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.mb = newMailbox(e.queueSize)
	return e
}

// Run serves requests until a shutdown trigger fires or ctx is cancelled,
// then closes the store and Done.
//
// CRITICAL: This is the only goroutine that touches the store.
//
// Returns ErrAlreadyRunning if called more than once, the store's Close
// error if it had one, and ctx.Err() if ctx ended the loop.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	e.logger.Info("engine starting", "queue_size", e.mb.Cap())

	trigger := e.loop(ctx)

	closeErr := e.closeStore()
	close(e.done)
	e.discardQueued()

	e.logger.Info("engine stopped", "trigger", trigger, "served", e.clock.Current())

	if closeErr != nil {
		return fmt.Errorf("close store: %w", closeErr)
	}
	if trigger == TriggerContext {
		return ctx.Err()
	}
	return nil
}

// loop serves requests until one of the stop conditions is observed and
// returns the trigger that stopped it.
//
// When several cases are ready select picks one at random, so neither the
// mailbox nor the wake signal can starve the other.
func (e *Engine) loop(ctx context.Context) string {
	for {
		select {
		case <-ctx.Done():
			if e.stopping.CompareAndSwap(false, true) {
				e.metrics.ShutdownTriggered(TriggerContext)
				e.logger.Info("shutdown requested", "trigger", TriggerContext)
			}
			return TriggerContext

		case <-e.mb.wake:
			return TriggerWindowClose

		case req := <-e.mb.inbox:
			e.metrics.QueueDepth(e.mb.Len())
			if _, ok := req.(*shutdownRequest); ok {
				return TriggerRequest
			}
			e.dispatch(ctx, req)
		}
	}
}

// dispatch serves one request and replies.
// CRITICAL: Called only from the Run goroutine.
func (e *Engine) dispatch(ctx context.Context, req Request) {
	seq := e.clock.Next()
	start := time.Now()

	delivered, err := e.serve(ctx, req)

	elapsed := time.Since(start)
	code := Code(err)
	e.metrics.RequestServed(req.Op(), code, elapsed)

	attrs := []any{
		"seq", seq,
		"request_id", req.RequestID(),
		"op", req.Op(),
		"duration", elapsed,
	}
	switch code {
	case "":
		e.logger.Debug("request served", attrs...)
	case ErrCodePanic:
		e.logger.Error("store panicked", append(attrs, "error", err)...)
	default:
		e.logger.Info("request failed", append(attrs, "error", err)...)
	}

	if !delivered {
		e.metrics.ReplyDropped(req.Op())
		e.logger.Warn("reply not delivered", attrs...)
	}
}

// serve calls the store for req. The store call runs under a context that
// ignores cancellation so it always completes once picked. A panic is
// recovered and replied as a RequestError.
func (e *Engine) serve(ctx context.Context, req Request) (delivered bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RequestError{
				Code:      ErrCodePanic,
				Op:        req.Op(),
				RequestID: req.RequestID(),
				Err:       fmt.Errorf("%v", r),
			}
			delivered = req.reject(err)
		}
	}()
	return req.execute(context.WithoutCancel(ctx), e.store)
}

// discardQueued answers every request still in the mailbox with a no
// response error. The store is closed by now, so none of them is served.
func (e *Engine) discardQueued() {
	for _, req := range e.mb.drain() {
		if _, ok := req.(*shutdownRequest); ok {
			continue
		}
		if !req.reject(noResponse(req.Op(), req.RequestID(), ErrNoResponse)) {
			e.metrics.ReplyDropped(req.Op())
		}
		e.logger.Debug("request discarded after shutdown",
			"request_id", req.RequestID(),
			"op", req.Op())
	}
}

// Submit places req on the mailbox, blocking while it is full.
// Thread-safe: may be called from any goroutine.
//
// A request without an id gets one from the configured generator. Submit
// returns a RequestError with ErrCodeInvalidRequest for a request that has
// no reply channel, and one with ErrCodeNoResponse when the engine has
// stopped or ctx ends before the request is queued.
//
// Submit only enqueues; the result arrives on the request's reply channel.
// Once Submit returns nil exactly one result is sent there, even if the
// engine stops right after. Most callers want Call.
func (e *Engine) Submit(ctx context.Context, req Request) error {
	if err := req.validate(); err != nil {
		return &RequestError{
			Code:      ErrCodeInvalidRequest,
			Op:        req.Op(),
			RequestID: req.RequestID(),
			Err:       err,
		}
	}

	h := req.header()
	if h.ID == "" {
		h.ID = e.ids.Generate()
	}

	err := e.mb.put(ctx, e.done, req)

	// A send can land after the loop's final drain. Drain again once the
	// engine has stopped so nothing is left unanswered in the mailbox.
	select {
	case <-e.done:
		e.discardQueued()
	default:
	}

	if err != nil {
		return noResponse(req.Op(), h.ID, err)
	}
	e.metrics.QueueDepth(e.mb.Len())
	return nil
}

// Call submits the request built by build and waits for its result.
//
// build receives a fresh capacity-1 reply channel and must place it in the
// request it returns. If the engine stops before replying, or ctx ends
// first, Call returns a RequestError for which IsNoResponse is true.
func Call[T any](ctx context.Context, e *Engine, build func(reply chan<- Result[T]) Request) (T, error) {
	var zero T

	reply := make(chan Result[T], 1)
	req := build(reply)
	if err := e.Submit(ctx, req); err != nil {
		return zero, err
	}

	select {
	case r := <-reply:
		return r.Value, r.Err
	case <-e.done:
		// The reply may have been written just before the loop stopped.
		select {
		case r := <-reply:
			return r.Value, r.Err
		default:
		}
		return zero, noResponse(req.Op(), req.RequestID(), ErrNoResponse)
	case <-ctx.Done():
		return zero, noResponse(req.Op(), req.RequestID(), ctx.Err())
	}
}

// Done is closed after the loop has stopped and the store is closed.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// QueueLen returns the number of requests waiting in the mailbox.
func (e *Engine) QueueLen() int {
	return e.mb.Len()
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}
