package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/diary/internal/diary"
	"github.com/roach88/diary/internal/engine"
)

// Service is the front door to an engine.
//
// Thread-safety: all methods may be called from any number of goroutines.
type Service struct {
	engine  *engine.Engine
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds how long a call waits, covering both the enqueue and
// the reply. A call that runs out of time reports "no response received";
// the request may still be served. Zero means no limit (the default).
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service that submits to e.
func NewService(e *engine.Engine, opts ...Option) *Service {
	s := &Service{engine: e, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEntry adds an entry.
func (s *Service) CreateEntry(ctx context.Context, content string, pinned bool) Response[diary.Entry] {
	return call(ctx, s, func(reply chan<- engine.Result[diary.Entry]) engine.Request {
		return &engine.CreateEntry{Content: content, Pinned: pinned, Reply: reply}
	})
}

// ReadEntry returns one entry by id.
func (s *Service) ReadEntry(ctx context.Context, id int64) Response[diary.Entry] {
	return call(ctx, s, func(reply chan<- engine.Result[diary.Entry]) engine.Request {
		return &engine.ReadEntry{ID: id, Reply: reply}
	})
}

// ReadEntries returns one page of entries.
func (s *Service) ReadEntries(ctx context.Context, q diary.PageQuery) Response[diary.Page] {
	return call(ctx, s, func(reply chan<- engine.Result[diary.Page]) engine.Request {
		return &engine.ReadEntries{Query: q, Reply: reply}
	})
}

// UpdateEntry applies a partial update.
func (s *Service) UpdateEntry(ctx context.Context, id int64, patch diary.EntryPatch) Response[diary.Entry] {
	return call(ctx, s, func(reply chan<- engine.Result[diary.Entry]) engine.Request {
		return &engine.UpdateEntry{ID: id, Patch: patch, Reply: reply}
	})
}

// DeleteEntry removes an entry.
func (s *Service) DeleteEntry(ctx context.Context, id int64) Response[Empty] {
	return callEmpty(ctx, s, func(reply chan<- engine.Result[Empty]) engine.Request {
		return &engine.DeleteEntry{ID: id, Reply: reply}
	})
}

// DumpEntries writes every entry to a dump file.
func (s *Service) DumpEntries(ctx context.Context) Response[Empty] {
	return callEmpty(ctx, s, func(reply chan<- engine.Result[Empty]) engine.Request {
		return &engine.DumpEntries{Reply: reply}
	})
}

// Shutdown asks the engine to stop after the requests already queued.
// It does not wait for the store to close. A repeated call, or one after
// the window was closed, succeeds without doing anything.
func (s *Service) Shutdown(ctx context.Context) Response[Empty] {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.engine.Shutdown(ctx); err != nil {
		return failure[Empty](err)
	}
	return empty()
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func call[T any](ctx context.Context, s *Service, build func(chan<- engine.Result[T]) engine.Request) Response[T] {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	v, err := engine.Call(ctx, s.engine, build)
	if err != nil {
		s.logFailure(err)
		return failure[T](err)
	}
	return success(v)
}

func callEmpty(ctx context.Context, s *Service, build func(chan<- engine.Result[Empty]) engine.Request) Response[Empty] {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := engine.Call(ctx, s.engine, build); err != nil {
		s.logFailure(err)
		return failure[Empty](err)
	}
	return empty()
}

func (s *Service) logFailure(err error) {
	if engine.IsNoResponse(err) {
		s.logger.Warn("no response from engine", "error", err)
	}
}
