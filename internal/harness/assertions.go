package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/diary/internal/diary"
	"github.com/roach88/diary/internal/store"
)

// AssertionContext gives assertions access to the reopened store.
type AssertionContext struct {
	Store store.Handle
	Ctx   context.Context
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Step, event.Op, event.Args)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(actx, a)
		case AssertEntryCount:
			err = assertEntryCount(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertTraceCount checks if the op appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks if ops first appear in the specified order.
// Ops don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if positions[event.Op] == 0 {
			positions[event.Op] = i + 1 // 1-indexed for readability
		}
	}

	for _, op := range assertion.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", assertion.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Ops); i++ {
		prev := assertion.Ops[i-1]
		curr := assertion.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertFinalState reads the entry from the reopened store and compares it
// with the expected values using subset semantics.
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	e, err := actx.Store.ReadOne(actx.Ctx, assertion.ID)
	if assertion.Absent {
		if errors.Is(err, diary.ErrNotFound) {
			return nil
		}
		actual := fmt.Sprintf("entry found: %+v", e)
		if err != nil {
			actual = fmt.Sprintf("read error: %v", err)
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("entry %d absent", assertion.ID),
			Actual:   actual,
		}
	}
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("entry %d", assertion.ID),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}

	actual, err := normalize(e)
	if err != nil {
		return err
	}
	if diff := matchSubset(assertion.Expect, actual); diff != "" {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("entry %d matching %s", assertion.ID, formatMap(assertion.Expect)),
			Actual:   diff,
		}
	}
	return nil
}

// assertEntryCount checks the total number of persisted entries.
func assertEntryCount(actx *AssertionContext, assertion Assertion) error {
	page, err := actx.Store.ReadPage(actx.Ctx, diary.PageQuery{})
	if err != nil {
		return &AssertionError{
			Type:     AssertEntryCount,
			Expected: fmt.Sprintf("%d entries", assertion.Count),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}
	if page.Total != int64(assertion.Count) {
		return &AssertionError{
			Type:     AssertEntryCount,
			Expected: fmt.Sprintf("%d entries", assertion.Count),
			Actual:   fmt.Sprintf("%d entries", page.Total),
		}
	}
	return nil
}

// matchSubset reports the first field of expected that actual does not
// match, or "" when every field matches. Nested maps match as subsets;
// everything else must be equal after normalization.
func matchSubset(expected map[string]any, actual any) string {
	want, err := normalize(expected)
	if err != nil {
		return fmt.Sprintf("cannot normalize expected value: %v", err)
	}
	return subsetDiff("", want, actual)
}

func subsetDiff(path string, want, got any) string {
	wm, ok := want.(map[string]any)
	if !ok {
		if !reflect.DeepEqual(want, got) {
			return fmt.Sprintf("%s: expected %v, got %v", fieldName(path), want, got)
		}
		return ""
	}

	gm, ok := got.(map[string]any)
	if !ok {
		return fmt.Sprintf("%s: expected object, got %v", fieldName(path), got)
	}

	keys := make([]string, 0, len(wm))
	for k := range wm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sub := k
		if path != "" {
			sub = path + "." + k
		}
		gv, present := gm[k]
		if !present {
			return fmt.Sprintf("%s: missing", sub)
		}
		if diff := subsetDiff(sub, wm[k], gv); diff != "" {
			return diff
		}
	}
	return ""
}

func fieldName(path string) string {
	if path == "" {
		return "value"
	}
	return path
}

// formatMap formats a map for error messages with sorted keys.
func formatMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
