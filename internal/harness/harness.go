package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/roach88/diary/internal/command"
	"github.com/roach88/diary/internal/engine"
	"github.com/roach88/diary/internal/host"
	"github.com/roach88/diary/internal/store"
	"github.com/roach88/diary/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenario steps one at a time through a host bridge.
type Harness struct {
	engine *engine.Engine
	bridge *host.Bridge
	logger *slog.Logger
}

// Run executes a scenario in dir and returns the result.
//
// dir must be empty and is used for the database and dump files; each
// scenario should get its own (t.TempDir()). Deterministic helpers ensure
// reproducible traces.
//
// Execution flow:
// 1. Open a fresh store in dir and start an engine on it
// 2. Execute steps in order, checking expect clauses
// 3. Shut the engine down (unless a step already did) and wait for it
// 4. Reopen the store and evaluate assertions
func Run(ctx context.Context, scenario *Scenario, dir string) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	dbURL := databaseURL(scenario.Backend, dir)
	opts := store.Options{
		Now:     testutil.NewDefaultClock().Now,
		DumpDir: filepath.Join(dir, "dumps"),
		Logger:  logger,
	}

	st, err := store.Open(ctx, dbURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	eng := engine.New(st,
		engine.WithLogger(logger),
		engine.WithRequestIDs(testutil.NewSequentialIDs("")),
	)
	runErr := make(chan error, 1)
	go func() {
		runErr <- eng.Run(ctx)
	}()

	svc := command.NewService(eng, command.WithLogger(logger))
	h := &Harness{
		engine: eng,
		bridge: host.NewBridge(eng, svc, io.Discard, logger),
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	if !eng.ShuttingDown() {
		if resp := svc.Shutdown(ctx); !resp.OK() {
			return nil, fmt.Errorf("shutdown: %s", resp.Err())
		}
	}
	if err := <-runErr; err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	if len(scenario.Assertions) == 0 {
		return result, nil
	}

	// Reopen to assert on what was persisted, not on what the replies said.
	st, err = store.Open(ctx, dbURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen store: %w", err)
	}
	defer st.Close()

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func databaseURL(backend, dir string) string {
	if backend == store.SchemePebble {
		return store.SchemePebble + "://" + filepath.Join(dir, "data")
	}
	return store.SchemeSQLite + "://" + filepath.Join(dir, "diary.db")
}

// executeStep dispatches one step, traces it and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) error {
	args, err := json.Marshal(step.Args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if step.Args == nil {
		args = nil
	}

	reply := h.bridge.Dispatch(ctx, host.Command{
		ID:   fmt.Sprintf("step-%d", n),
		Cmd:  step.Op,
		Args: args,
	})

	data, err := normalize(reply.Data)
	if err != nil {
		return fmt.Errorf("normalize reply: %w", err)
	}
	traceArgs, err := normalize(step.Args)
	if err != nil {
		return fmt.Errorf("normalize args: %w", err)
	}
	argMap, _ := traceArgs.(map[string]any)

	result.AddTrace(TraceEvent{
		Step:  n,
		Op:    step.Op,
		Args:  argMap,
		Data:  data,
		Error: reply.Error,
	})
	h.logger.Debug("step executed", "step", n, "op", step.Op)

	// The window close signal is out of band; let the engine stop before the
	// next step so that step sees a stopped engine.
	if step.Op == host.CmdCloseWindow {
		select {
		case <-h.engine.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if step.Expect != nil {
		if msg := checkExpect(n, step, data, reply.Error); msg != "" {
			result.AddError(msg)
		}
	}
	return nil
}

func checkExpect(n int, step Step, data any, replyErr *string) string {
	exp := step.Expect
	if exp.Error != "" {
		if replyErr == nil {
			return fmt.Sprintf("step %d (%s): expected error %q, got success", n, step.Op, exp.Error)
		}
		if *replyErr != exp.Error {
			return fmt.Sprintf("step %d (%s): expected error %q, got %q", n, step.Op, exp.Error, *replyErr)
		}
		return ""
	}

	if replyErr != nil {
		return fmt.Sprintf("step %d (%s): expected success, got error %q", n, step.Op, *replyErr)
	}
	if len(exp.Data) == 0 {
		return ""
	}
	if diff := matchSubset(exp.Data, data); diff != "" {
		return fmt.Sprintf("step %d (%s): %s", n, step.Op, diff)
	}
	return ""
}

// normalize round-trips v through JSON so replies and YAML expectations
// compare as the same plain types (map[string]any, []any, float64, ...).
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
