package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/endog/internal/engine"
	"github.com/roach88/endog/internal/journal"
	"github.com/roach88/endog/internal/tally"
	"github.com/roach88/endog/internal/testutil"
)

// Harness runs one scenario. It owns the clock, the journal, and the
// engine for the duration of the run.
type Harness struct {
	scenario *Scenario
	start    time.Time
	clock    *testutil.ManualClock
	ids      *testutil.FixedIDGenerator
	journal  *journal.File
	engine   *tally.Engine
	logger   *slog.Logger
}

// Run executes a scenario against a fresh engine and journal.
//
// Failed expectations are reported in the Result. An error is returned only
// when the run itself cannot proceed: the journal cannot be created, the
// engine cannot be reopened, or a step fails in a way no expectation covers.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	dir, err := os.MkdirTemp("", "endog-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	j, err := journal.OpenFile(filepath.Join(dir, "journal.log"))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	start := scenario.Start
	if start.IsZero() {
		start = DefaultStart
	}

	h := &Harness{
		scenario: scenario,
		start:    start,
		clock:    testutil.NewManualClock(start),
		ids:      testutil.NewFixedIDGenerator(""),
		journal:  j,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if err := h.open(ctx); err != nil {
		return nil, err
	}
	defer func() { h.engine.Close() }()

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	result.State = h.engine.State().Clone()

	actx := &AssertionContext{
		Ctx:     ctx,
		Journal: h.journal,
		Pending: h.engine.Pending(),
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) open(ctx context.Context) error {
	cfg := tally.Config("", h.scenario.Tolerance)
	cfg.Journal = h.journal

	eng, err := tally.Open(ctx, cfg,
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	h.engine = eng
	return nil
}

func (h *Harness) runStep(ctx context.Context, n int, step Step, result *Result) error {
	ev := TraceEvent{Step: n}

	switch {
	case step.Submit != nil:
		ev.Op = OpSubmit
		res, err := h.submit(ctx, step.Submit, &ev)
		if err != nil {
			return err
		}
		ev.Result = res
		if err := checkSubmit(step.ExpectError, res); err != nil {
			result.AddError(fmt.Sprintf("step %d: %v", n, err))
		}

	case step.Advance > 0:
		ev.Op = OpAdvance
		ev.By = step.Advance.String()
		h.clock.Advance(step.Advance)

	case step.Sweep:
		ev.Op = OpSweep
		if err := h.engine.Sweep(ctx); err != nil {
			return fmt.Errorf("sweep: %w", err)
		}

	case step.Restart:
		ev.Op = OpRestart
		if err := h.engine.Close(); err != nil {
			return fmt.Errorf("close engine: %w", err)
		}
		if err := h.open(ctx); err != nil {
			return err
		}

	case step.ExpectState != nil:
		ev.Op = OpExpectState
		if err := checkState(step.ExpectState, h.engine.State()); err != nil {
			result.AddError(fmt.Sprintf("step %d: %v", n, err))
		}
	}

	if err := h.snapshot(ctx, &ev); err != nil {
		return err
	}
	result.AddTrace(ev)

	h.logger.Info("step completed", "step", n, "op", ev.Op, "result", ev.Result)
	return nil
}

// submit stamps and submits the event, returning ResultAccepted or the
// engine error code.
func (h *Harness) submit(ctx context.Context, s *SubmitStep, trace *TraceEvent) (string, error) {
	ev := tally.Event{Key: s.Key, Delta: s.Delta, Note: s.Note}
	if s.At != nil {
		ev.Time = h.start.Add(*s.At)
	}
	ev = tally.Stamp(ev, h.ids, h.clock.Now)

	trace.Key = ev.Key
	trace.Delta = ev.Delta
	trace.At = h.offset(ev.Time)

	err := h.engine.Submit(ctx, ev)
	if err == nil {
		return ResultAccepted, nil
	}

	var engErr *engine.Error
	if errors.As(err, &engErr) && engErr.Code != engine.ErrCodeEngineFailed {
		return string(engErr.Code), nil
	}
	return "", fmt.Errorf("submit: %w", err)
}

func (h *Harness) snapshot(ctx context.Context, ev *TraceEvent) error {
	journaled, err := countRecords(ctx, h.journal)
	if err != nil {
		return err
	}
	ev.Now = h.offset(h.clock.Now())
	ev.Watermark = h.offset(h.engine.Watermark())
	ev.Pending = h.engine.Pending()
	ev.Journaled = journaled
	ev.State = h.engine.State().Clone()
	return nil
}

func (h *Harness) offset(t time.Time) string {
	return t.Sub(h.start).String()
}

func countRecords(ctx context.Context, j journal.Journal) (int, error) {
	n := 0
	for _, err := range j.Replay(ctx) {
		if err != nil {
			return 0, fmt.Errorf("failed to read journal: %w", err)
		}
		n++
	}
	return n, nil
}
