package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/diary/internal/host"
	"github.com/roach88/diary/internal/store"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend is "sqlite" (default) or "pebble".
	Backend string `yaml:"backend,omitempty"`

	// Steps run one after another; each waits for its reply.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the persisted state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one bridge command.
type Step struct {
	// Op is a bridge command name (create_entry, read_entries, shutdown, ...).
	Op string `yaml:"op"`

	// Args are the command arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect validates the reply. If nil, the reply is only traced.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected reply of a step.
type Expect struct {
	// Error is the exact expected error message. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Data is a subset of the expected reply data.
	Data map[string]any `yaml:"data,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Op is used by trace_count.
	Op string `yaml:"op,omitempty"`

	// Ops is used by trace_order.
	Ops []string `yaml:"ops,omitempty"`

	// Count is used by trace_count and entry_count.
	Count int `yaml:"count,omitempty"`

	// ID selects the entry for final_state.
	ID int64 `yaml:"id,omitempty"`

	// Expect is a subset of the persisted entry (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent asserts the entry no longer exists (final_state).
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertFinalState = "final_state"
	AssertEntryCount = "entry_count"
)

var knownOps = map[string]bool{
	host.CmdCreateEntry: true,
	host.CmdReadEntry:   true,
	host.CmdReadEntries: true,
	host.CmdUpdateEntry: true,
	host.CmdDeleteEntry: true,
	host.CmdDumpEntries: true,
	host.CmdShutdown:    true,
	host.CmdCloseWindow: true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Backend {
	case "", store.SchemeSQLite, store.SchemePebble:
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Op == "" {
			return fmt.Errorf("steps[%d]: op is required", i)
		}
		if !knownOps[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertFinalState:
		if a.ID == 0 {
			return fmt.Errorf("assertions[%d]: id is required for final_state", index)
		}
		if len(a.Expect) == 0 && !a.Absent {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	case AssertEntryCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for entry_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
