package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestGoldenScenarios(t *testing.T) {
	for _, name := range []string{"crud_roundtrip", "shutdown_then_requests"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_WindowClose(t *testing.T) {
	result, err := Run(context.Background(), loadTestScenario(t, "window_close"), t.TempDir())
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 5)
	assert.Equal(t, "prevent_close", result.Trace[1].Data)
	assert.Equal(t, "allow_close", result.Trace[3].Data)
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "crud_roundtrip")

	first, err := Run(context.Background(), s, t.TempDir())
	require.NoError(t, err)
	second, err := Run(context.Background(), s, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_FailedExpectations(t *testing.T) {
	s := &Scenario{
		Name:        "failing",
		Description: "every expectation is wrong",
		Steps: []Step{
			{Op: "create_entry", Args: map[string]any{"content": "x"}, Expect: &Expect{Data: map[string]any{"pinned": true}}},
			{Op: "read_entry", Args: map[string]any{"id": 1}, Expect: &Expect{Error: "entry not found: id 1"}},
			{Op: "read_entry", Args: map[string]any{"id": 9}, Expect: &Expect{}},
		},
		Assertions: []Assertion{
			{Type: AssertEntryCount, Count: 3},
			{Type: AssertTraceCount, Op: "delete_entry", Count: 1},
		},
	}

	result, err := Run(context.Background(), s, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "step 1 (create_entry): pinned: expected true, got false")
	assert.Contains(t, result.Errors[1], `step 2 (read_entry): expected error "entry not found: id 1", got success`)
	assert.Contains(t, result.Errors[2], `step 3 (read_entry): expected success, got error "entry not found: id 9"`)
	assert.Contains(t, result.Errors[3], "Expected: 3 entries")
	assert.Contains(t, result.Errors[4], "0 occurrences")
}

func TestRun_BadArgsTraced(t *testing.T) {
	s := &Scenario{
		Name:        "bad_args",
		Description: "argument decoding errors come back as replies",
		Steps: []Step{
			{Op: "read_entry", Args: map[string]any{"id": "one"}},
		},
	}

	result, err := Run(context.Background(), s, t.TempDir())
	require.NoError(t, err)
	require.Len(t, result.Trace, 1)
	require.NotNil(t, result.Trace[0].Error)
	assert.Contains(t, *result.Trace[0].Error, "invalid arguments for read_entry")
}
