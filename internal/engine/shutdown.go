package engine

import (
	"context"
	"errors"
)

// Shutdown is the explicit shutdown trigger.
//
// The first trigger to fire wins the shutdown flag. If that is this call, a
// shutdown marker is queued behind every request already in the mailbox, so
// those are served before the store closes. Shutdown returns once the marker
// is queued; wait on Done for the store to be closed.
//
// If ctx ends while the mailbox is full the marker is replaced by the
// out-of-band signal, so a won flag always stops the loop.
//
// A call that loses the flag does nothing and returns nil.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !e.stopping.CompareAndSwap(false, true) {
		e.logger.Debug("shutdown already in progress", "trigger", TriggerRequest)
		return nil
	}
	e.metrics.ShutdownTriggered(TriggerRequest)

	req := &shutdownRequest{Header: Header{ID: e.ids.Generate()}}
	e.logger.Info("shutdown requested", "trigger", TriggerRequest, "request_id", req.ID)

	err := e.mb.put(ctx, e.done, req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNoResponse):
		return noResponse(OpShutdown, req.ID, err)
	default:
		e.mb.signal()
		e.logger.Warn("shutdown marker not queued, signalled out of band",
			"request_id", req.ID,
			"error", err)
		return nil
	}
}

// CloseRequested is the host's window-close trigger.
//
// If this call wins the shutdown flag it places the out-of-band wake token,
// then calls terminate (which may be nil) and returns true. It does not wait
// for the store to close. A call that loses the flag does nothing, does not
// call terminate, and returns false.
//
// Thread-safe and non-blocking apart from terminate itself.
func (e *Engine) CloseRequested(terminate func()) bool {
	if !e.stopping.CompareAndSwap(false, true) {
		return false
	}
	e.metrics.ShutdownTriggered(TriggerWindowClose)
	e.logger.Info("shutdown requested", "trigger", TriggerWindowClose)

	e.mb.signal()
	if terminate != nil {
		terminate()
	}
	return true
}

// ShuttingDown reports whether a shutdown trigger has fired.
func (e *Engine) ShuttingDown() bool {
	return e.stopping.Load()
}

// closeStore closes the store exactly once and returns its error.
// CRITICAL: Called only from the Run goroutine, after the loop has stopped.
func (e *Engine) closeStore() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.store.Close()
		if e.closeErr != nil {
			e.logger.Error("store close failed", "error", e.closeErr)
			return
		}
		e.logger.Info("store closed")
	})
	return e.closeErr
}
