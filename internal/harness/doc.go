// Package harness runs conformance scenarios against the diary engine.
//
// A scenario is a YAML file listing front door commands and their expected
// replies. The harness opens a fresh store in a working directory, starts a
// real engine, runs each step through the host bridge in order and records a
// trace. Once the flow is over the engine is stopped, the store is reopened
// and final-state assertions are checked against what was persisted.
//
// # Scenario Format
//
//	name: crud_roundtrip
//	description: "Create, update and delete one entry"
//	backend: sqlite            # or pebble; defaults to sqlite
//	steps:
//	  - op: create_entry
//	    args: { content: "hello", pinned: true }
//	    expect:
//	      data: { id: 1, pinned: true }
//	  - op: read_entry
//	    args: { id: 99 }
//	    expect:
//	      error: "entry not found: id 99"
//	assertions:
//	  - type: trace_count
//	    op: create_entry
//	    count: 1
//	  - type: final_state
//	    id: 1
//	    expect: { content: "hello" }
//
// A close_window step waits for the engine to stop before the next step
// runs, the way a host waits for its window to go away.
//
// # Assertion Types
//
//   - trace_count: the op appears exactly count times in the trace
//   - trace_order: the ops first appear in the listed order
//   - final_state: the persisted entry with id matches expect (subset), or is
//     gone when absent is true
//   - entry_count: the store holds exactly count entries
//
// # Deterministic Testing
//
// Timestamps come from testutil.StepClock and request ids from
// testutil.SequentialIDs, so traces are byte-identical across runs and can be
// compared with golden files (see RunWithGolden).
package harness
