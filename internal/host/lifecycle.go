package host

import (
	"log/slog"

	"github.com/roach88/diary/internal/engine"
)

// Window is the host window whose close request triggers shutdown.
type Window interface {
	Close() error
}

// Decision tells the host what to do with a close request.
type Decision int

const (
	// AllowClose lets the window close.
	AllowClose Decision = iota
	// PreventClose cancels this close request; the window has been asked to
	// close again once the shutdown signal was handed off.
	PreventClose
)

func (d Decision) String() string {
	if d == PreventClose {
		return "prevent_close"
	}
	return "allow_close"
}

// Lifecycle binds a window to an engine.
type Lifecycle struct {
	engine *engine.Engine
	window Window
	logger *slog.Logger
}

// NewLifecycle creates the close hook for w. A nil logger uses slog.Default().
func NewLifecycle(e *engine.Engine, w Window, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{engine: e, window: w, logger: logger}
}

// CloseRequested handles a window close request.
//
// The first call signals the engine out of band, then closes the window and
// returns PreventClose. It does not wait for the store to close. Every later
// call, including the one the window's own Close may trigger, returns
// AllowClose with no side effects.
func (l *Lifecycle) CloseRequested() Decision {
	won := l.engine.CloseRequested(func() {
		l.logger.Info("shutdown signalled, closing window")
		if err := l.window.Close(); err != nil {
			l.logger.Error("window close failed", "error", err)
		}
	})
	if won {
		return PreventClose
	}
	return AllowClose
}
