// Package harness runs scripted scenarios against a tally engine.
//
// A scenario drives the engine with a manual clock and a temporary journal,
// so every sweep happens at a known instant and every run produces the same
// trace. Traces are compared against golden files.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: late_arrival
//	description: "A late event is folded in timestamp order"
//	tolerance: 1s
//	start: 2024-05-01T12:00:00Z   # optional
//	steps:
//	  - submit: { key: apples, delta: 3, at: 0s }
//	  - submit: { key: apples, delta: -5, at: -500ms }
//	    expect_error: APPLICATION_FAILURE
//	  - advance: 2s
//	  - expect_state: { apples: 3 }
//	  - restart: true
//	assertions:
//	  - type: journal_count
//	    count: 1
//
// Each step does exactly one thing:
//
//   - submit: stamp and submit an event. at is an offset from start; without
//     it the event is stamped with the current clock reading.
//   - advance: move the clock forward, firing any sweeps that come due.
//   - sweep: call Sweep directly.
//   - restart: close the engine and open it again on the same journal.
//   - expect_state: compare Current against the given counters.
//
// expect_error goes on a submit step and names the expected error code.
// A submit step without it expects the event to be accepted.
//
// # Assertion Types
//
//   - final_state: Current equals the given counters after the last step
//   - journal_count: the journal holds exactly count records
//   - pending_count: exactly count events are pending
//   - result_count: exactly count submits ended with result
//
// # Trace Format
//
// Every step appends one TraceEvent. Times are written as offsets from the
// scenario start. Golden files hold one canonical JSON trace event per line.
package harness
