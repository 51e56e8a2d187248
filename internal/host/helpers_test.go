package host

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/roach88/diary/internal/command"
	"github.com/roach88/diary/internal/engine"
	"github.com/roach88/diary/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startEngine runs an engine over a RecordingStore until the test ends.
func startEngine(t *testing.T) (*engine.Engine, *testutil.RecordingStore) {
	t.Helper()
	s := testutil.NewRecordingStore()
	e := engine.New(s, engine.WithLogger(discardLogger()))
	go e.Run(context.Background())

	t.Cleanup(func() {
		s.Release()
		e.CloseRequested(nil)
		<-e.Done()
	})
	return e, s
}

func newService(e *engine.Engine) *command.Service {
	return command.NewService(e, command.WithLogger(discardLogger()))
}

func waitDone(t *testing.T, e *engine.Engine) {
	t.Helper()
	select {
	case <-e.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}
