package harness

import "github.com/roach88/endog/internal/tally"

// Trace operations.
const (
	OpSubmit      = "submit"
	OpAdvance     = "advance"
	OpSweep       = "sweep"
	OpRestart     = "restart"
	OpExpectState = "expect_state"
)

// ResultAccepted is the trace result of a submit that succeeded.
const ResultAccepted = "accepted"

// TraceEvent records one step and the engine as it stood afterwards.
// Times are offsets from the scenario start.
type TraceEvent struct {
	Step int    `json:"step"`
	Op   string `json:"op"`

	// Submit steps only.
	Key    string `json:"key,omitempty"`
	Delta  int64  `json:"delta,omitempty"`
	At     string `json:"at,omitempty"`
	Result string `json:"result,omitempty"`

	// Advance steps only.
	By string `json:"by,omitempty"`

	Now       string      `json:"now"`
	Watermark string      `json:"watermark"`
	Pending   int         `json:"pending"`
	Journaled int         `json:"journaled"`
	State     tally.State `json:"state"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is Current after the last step.
	State tally.State `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  tally.State{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// countResults returns the number of submits that ended with result.
func (r *Result) countResults(result string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Op == OpSubmit && ev.Result == result {
			n++
		}
	}
	return n
}
