package host

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWindow records Close calls. Like a real window, closing it fires
// another close request at the lifecycle.
type fakeWindow struct {
	mu        sync.Mutex
	lifecycle *Lifecycle
	closes    int
	reentered []Decision
	err       error
}

func (w *fakeWindow) Close() error {
	w.mu.Lock()
	w.closes++
	lc := w.lifecycle
	w.mu.Unlock()

	if lc != nil {
		d := lc.CloseRequested()
		w.mu.Lock()
		w.reentered = append(w.reentered, d)
		w.mu.Unlock()
	}
	return w.err
}

func (w *fakeWindow) Closes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closes
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "allow_close", AllowClose.String())
	assert.Equal(t, "prevent_close", PreventClose.String())
}

func TestLifecycle_FirstCloseSignalsThenClosesWindow(t *testing.T) {
	e, s := startEngine(t)
	w := &fakeWindow{}
	lc := NewLifecycle(e, w, discardLogger())
	w.lifecycle = lc

	assert.Equal(t, PreventClose, lc.CloseRequested())
	assert.Equal(t, 1, w.Closes())
	assert.Equal(t, []Decision{AllowClose}, w.reentered, "the window's own close must be let through")

	waitDone(t, e)
	assert.Equal(t, 1, s.CloseCalls())
}

func TestLifecycle_Idempotent(t *testing.T) {
	e, s := startEngine(t)
	var logs bytes.Buffer
	w := &fakeWindow{}
	lc := NewLifecycle(e, w, slog.New(slog.NewTextHandler(&logs, nil)))

	assert.Equal(t, PreventClose, lc.CloseRequested())
	assert.Equal(t, AllowClose, lc.CloseRequested())
	assert.Equal(t, AllowClose, lc.CloseRequested())

	waitDone(t, e)
	assert.Equal(t, 1, w.Closes())
	assert.Equal(t, 1, s.CloseCalls())
	assert.Equal(t, 1, strings.Count(logs.String(), "shutdown signalled"), "no duplicate log lines")
}

func TestLifecycle_WindowCloseErrorLogged(t *testing.T) {
	e, _ := startEngine(t)
	var logs bytes.Buffer
	w := &fakeWindow{err: errors.New("already gone")}
	lc := NewLifecycle(e, w, slog.New(slog.NewTextHandler(&logs, nil)))

	assert.Equal(t, PreventClose, lc.CloseRequested())
	waitDone(t, e)
	assert.Contains(t, logs.String(), "already gone")
}

func TestLifecycle_AfterExplicitShutdown(t *testing.T) {
	e, s := startEngine(t)
	w := &fakeWindow{}
	lc := NewLifecycle(e, w, discardLogger())

	require.True(t, newService(e).Shutdown(context.Background()).OK())

	assert.Equal(t, AllowClose, lc.CloseRequested())
	assert.Equal(t, 0, w.Closes(), "losing trigger must not close the window again")

	waitDone(t, e)
	assert.Equal(t, 1, s.CloseCalls())
}

func TestLifecycle_RacesExplicitShutdown(t *testing.T) {
	for i := 0; i < 50; i++ {
		e, s := startEngine(t)
		w := &fakeWindow{}
		lc := NewLifecycle(e, w, discardLogger())
		svc := newService(e)

		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			svc.Shutdown(context.Background())
		}()
		go func() {
			defer wg.Done()
			<-start
			lc.CloseRequested()
		}()
		close(start)
		wg.Wait()

		waitDone(t, e)
		require.Equal(t, 1, s.CloseCalls(), "iteration %d", i)
		require.LessOrEqual(t, w.Closes(), 1, "iteration %d", i)
	}
}
