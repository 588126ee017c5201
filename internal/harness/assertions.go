package harness

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/roach88/endog/internal/journal"
	"github.com/roach88/endog/internal/tally"
)

// AssertionError is returned when an assertion fails.
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
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", ev.Step, ev.Op)
			if ev.Op == OpSubmit {
				fmt.Fprintf(&buf, " %s%+d at %s: %s", ev.Key, ev.Delta, ev.At, ev.Result)
			}
			fmt.Fprintf(&buf, " (now %s, watermark %s, pending %d)\n", ev.Now, ev.Watermark, ev.Pending)
		}
	}

	return buf.String()
}

// AssertionContext carries what assertions inspect besides the trace.
type AssertionContext struct {
	Ctx     context.Context
	Journal journal.Journal
	Pending int
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalState:
			err = assertFinalState(result, a)
		case AssertJournalCount:
			err = assertJournalCount(result, a, actx)
		case AssertPendingCount:
			err = assertCount(result, a.Type, a.Count, actx.Pending)
		case AssertResultCount:
			err = assertCount(result, a.Type+" "+a.Result, a.Count, result.countResults(a.Result))
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i+1, err))
		}
	}
	return errs
}

func assertFinalState(result *Result, a Assertion) error {
	if err := checkState(a.State, result.State); err != nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: formatState(a.State),
			Actual:   formatState(result.State),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertJournalCount(result *Result, a Assertion, actx *AssertionContext) error {
	n, err := countRecords(actx.Ctx, actx.Journal)
	if err != nil {
		return err
	}
	return assertCount(result, a.Type, a.Count, n)
}

func assertCount(result *Result, what string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     what,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
		Trace:    result.Trace,
	}
}

// checkSubmit compares a submit result with the expected error code.
// An empty code expects the event to be accepted.
func checkSubmit(expectError, got string) error {
	want := expectError
	if want == "" {
		want = ResultAccepted
	}
	if got != want {
		return fmt.Errorf("submit: expected %s, got %s", want, got)
	}
	return nil
}

// checkState compares counters exactly. A counter missing from the state
// is zero, so {apples: 0} matches a state without apples.
func checkState(want map[string]int64, got tally.State) error {
	w := make(map[string]int64, len(want))
	for k, v := range want {
		if v != 0 {
			w[k] = v
		}
	}
	if !maps.Equal(w, map[string]int64(got)) {
		return fmt.Errorf("state: expected %s, got %s", formatState(w), formatState(got))
	}
	return nil
}

func formatState[M ~map[string]int64](s M) string {
	st := tally.State(s)
	parts := make([]string, 0, len(st))
	for _, k := range st.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%d", k, st[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
