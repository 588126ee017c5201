package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/endog/internal/codec"
	"github.com/roach88/endog/internal/journal"
)

// Cloner is implemented by state values. Clone returns a deep copy that
// shares no mutable memory with the receiver.
type Cloner[S any] interface {
	Clone() S
}

// Applier folds an event into a state draft.
//
// Apply mutates state in place. It may fail; the engine then discards the
// draft, so Apply must have no side effects besides mutating state.
type Applier[S, E any] interface {
	Apply(state S, event E) error
}

// ApplyFunc adapts a function to the Applier interface.
type ApplyFunc[S, E any] func(state S, event E) error

// Apply calls f(state, event).
func (f ApplyFunc[S, E]) Apply(state S, event E) error {
	return f(state, event)
}

// Timestamper maps an event to its instant.
//
// Timestamp must be pure and total. A zero time.Time marks the event as
// having no valid timestamp.
type Timestamper[E any] interface {
	Timestamp(event E) time.Time
}

// TimestampFunc adapts a function to the Timestamper interface.
type TimestampFunc[E any] func(event E) time.Time

// Timestamp calls f(event).
func (f TimestampFunc[E]) Timestamp(event E) time.Time {
	return f(event)
}

// Config describes the engine's domain and journal.
type Config[S Cloner[S], E any] struct {
	// Path is the journal file, created if absent. Ignored when Journal is set.
	Path string

	// Journal overrides Path with an already opened journal. The engine does
	// not close a journal it did not open.
	Journal journal.Journal

	// Initial is the empty state. It is cloned, never mutated.
	Initial S

	Applier     Applier[S, E]
	Timestamper Timestamper[E]

	// Codec serializes events to journal records. Default: codec.JSON[E].
	Codec codec.Codec[E]

	// Tolerance is how late an event may arrive. Must not be negative.
	Tolerance time.Duration
}

// entry is a pending event with its cached timestamp and journal record.
type entry[E any] struct {
	ts    time.Time
	event E

	// record is the encoded event, fixed at admission. It is nil for events
	// replayed from the journal that landed in the tolerance window; Sweep
	// must not append them a second time.
	record []byte
}

// Engine is a tolerant event-sourced state machine.
//
// Thread-safety model:
//   - Submit, Sweep, and the accessors are safe from any goroutine
//   - Sweeps also run from scheduler timers
//
// INVARIANTS (between public calls):
//   - Current == Baseline with the buffer folded in, in buffer order
//   - buffer ascending by timestamp; equal timestamps in arrival order
//   - watermark never decreases
//   - every accepted event was strictly after the watermark when submitted
type Engine[S Cloner[S], E any] struct {
	mu        sync.Mutex
	baseline  S
	current   S
	buffer    []entry[E]
	watermark time.Time
	failed    error
	closed    bool

	journal     journal.Journal
	ownsJournal bool
	applier     Applier[S, E]
	timestamper Timestamper[E]
	codec       codec.Codec[E]
	tolerance   time.Duration

	clock   Clock
	logger  *slog.Logger
	metrics *Metrics
	onFatal func(error)
	sched   *scheduler
}

// Open creates an engine and replays its journal.
//
// Records older than now-tolerance are folded straight into Baseline; the
// rest are resubmitted so they sit in the tolerance window again. A record
// that cannot be decoded, has no timestamp, or fails to apply is a
// CORRUPT_JOURNAL error and no engine is returned.
func Open[S Cloner[S], E any](ctx context.Context, cfg Config[S, E], opts ...Option) (*Engine[S, E], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	j, owns := cfg.Journal, false
	if j == nil {
		f, err := journal.OpenFile(cfg.Path,
			journal.WithEncoding(o.encoding),
			journal.WithChunkBytes(o.chunkBytes),
		)
		if err != nil {
			return nil, newIOError("open journal", err)
		}
		j, owns = f, true
	}

	c := cfg.Codec
	if c == nil {
		c = codec.JSON[E]{}
	}

	e := &Engine[S, E]{
		journal:     j,
		ownsJournal: owns,
		applier:     cfg.Applier,
		timestamper: cfg.Timestamper,
		codec:       c,
		tolerance:   cfg.Tolerance,
		clock:       o.clock,
		logger:      o.logger,
		metrics:     o.metrics,
		onFatal:     o.onFatal,
	}
	if e.onFatal == nil {
		e.onFatal = func(err error) {
			e.logger.Error("sweep failed, engine stopped", "error", err)
		}
	}
	e.sched = newScheduler(e.clock, e.sweepFromTimer)

	if err := e.replay(ctx, cfg.Initial); err != nil {
		e.sched.close()
		if owns {
			j.Close()
		}
		return nil, err
	}

	return e, nil
}

func validateConfig[S Cloner[S], E any](cfg Config[S, E]) error {
	if cfg.Tolerance < 0 {
		return fmt.Errorf("%w: negative tolerance %s", ErrInvalidConfig, cfg.Tolerance)
	}
	if cfg.Applier == nil {
		return fmt.Errorf("%w: missing applier", ErrInvalidConfig)
	}
	if cfg.Timestamper == nil {
		return fmt.Errorf("%w: missing timestamper", ErrInvalidConfig)
	}
	if cfg.Journal == nil && cfg.Path == "" {
		return fmt.Errorf("%w: missing journal path", ErrInvalidConfig)
	}
	return nil
}

// replay rebuilds Baseline, the buffer, and Current from the journal.
func (e *Engine[S, E]) replay(ctx context.Context, initial S) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.watermark = e.clock.Now().Add(-e.tolerance)
	baseline := initial.Clone()

	type recentRecord struct {
		record int
		event  E
	}
	var recent []recentRecord

	record, old := 0, 0
	for raw, err := range e.journal.Replay(ctx) {
		if err != nil {
			return newIOError("replay journal", err)
		}
		record++

		ev, err := e.codec.Decode(raw)
		if err != nil {
			return newCorruptJournalError(record, err)
		}
		ts := e.timestamper.Timestamp(ev)
		if ts.IsZero() {
			return newCorruptJournalError(record, newInvalidTimestampError())
		}

		if ts.After(e.watermark) {
			recent = append(recent, recentRecord{record: record, event: ev})
			continue
		}
		if err := e.applier.Apply(baseline, ev); err != nil {
			return newCorruptJournalError(record, newApplicationError(ts, err))
		}
		old++
	}

	e.baseline = baseline
	e.current = baseline.Clone()

	for _, r := range recent {
		if err := e.submitLocked(r.event, true); err != nil {
			return newCorruptJournalError(r.record, err)
		}
	}

	e.metrics.setWatermark(e.watermark)
	e.metrics.setPending(len(e.buffer))
	e.logger.Info("engine opened",
		"records", record,
		"committed", old,
		"pending", len(e.buffer),
		"watermark", e.watermark,
		"tolerance", e.tolerance)
	return nil
}

// Submit adds an event to the tolerance window and folds it into Current.
//
// Returns INVALID_TIMESTAMP for a zero timestamp, TOO_OLD for a timestamp at
// or before the watermark, UNENCODABLE if the event cannot be written to the
// journal, and APPLICATION_FAILURE if the Applier rejects the event. On any
// error the engine is unchanged.
func (e *Engine[S, E]) Submit(ctx context.Context, event E) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkUsable(); err != nil {
		return err
	}
	return e.submitLocked(event, false)
}

// submitLocked runs the admission path. Caller must hold mu.
func (e *Engine[S, E]) submitLocked(event E, journaled bool) error {
	ts := e.timestamper.Timestamp(event)
	if ts.IsZero() {
		e.metrics.observeSubmit(resultInvalidTimestamp)
		return newInvalidTimestampError()
	}
	if !ts.After(e.watermark) {
		e.metrics.observeSubmit(resultTooOld)
		return newTooOldError(ts, e.watermark)
	}

	ent := entry[E]{ts: ts, event: event}
	if !journaled {
		rec, err := e.encode(event)
		if err != nil {
			e.metrics.observeSubmit(resultUnencodable)
			return newUnencodableError(ts, err)
		}
		ent.record = rec
	}

	idx := insertIndex(e.buffer, ts)

	if idx == len(e.buffer) {
		next := e.current.Clone()
		if err := e.applier.Apply(next, event); err != nil {
			e.metrics.observeSubmit(resultApplicationFailure)
			return newApplicationError(ts, err)
		}
		e.current = next
		e.buffer = append(e.buffer, ent)
	} else {
		buf := make([]entry[E], 0, len(e.buffer)+1)
		buf = append(buf, e.buffer[:idx]...)
		buf = append(buf, ent)
		buf = append(buf, e.buffer[idx:]...)

		next := e.baseline.Clone()
		for _, pending := range buf {
			if err := e.applier.Apply(next, pending.event); err != nil {
				e.metrics.observeSubmit(resultApplicationFailure)
				return newApplicationError(pending.ts, err)
			}
		}
		e.current = next
		e.buffer = buf
	}

	e.sched.schedule(ts.Add(e.tolerance + sweepEpsilon))

	e.metrics.observeSubmit(resultAccepted)
	e.metrics.setPending(len(e.buffer))
	e.logger.Debug("event accepted",
		"timestamp", ts,
		"index", idx,
		"pending", len(e.buffer))
	return nil
}

// Sweep commits every pending event older than now-tolerance: it folds them
// into Baseline, appends them to the journal, and advances the watermark to
// now. Sweep is idempotent and runs automatically from the scheduler.
//
// A failure is fatal. The engine is poisoned and the error, with code
// ENGINE_FAILED, is also passed to the OnFatal hook.
func (e *Engine[S, E]) Sweep(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkUsable(); err != nil {
		return err
	}
	return e.sweepLocked(ctx)
}

// encode turns event into a record the journal will accept.
func (e *Engine[S, E]) encode(event E) ([]byte, error) {
	rec, err := e.codec.Encode(event)
	if err != nil {
		return nil, err
	}
	if c, ok := e.journal.(journal.Checker); ok {
		if err := c.Check(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (e *Engine[S, E]) sweepFromTimer() {
	if err := e.Sweep(context.Background()); err != nil && !IsEngineFailed(err) && !errors.Is(err, ErrClosed) {
		e.logger.Warn("scheduled sweep failed", "error", err)
	}
}

// sweepLocked performs a sweep. Caller must hold mu.
func (e *Engine[S, E]) sweepLocked(ctx context.Context) error {
	start := time.Now()
	now := e.clock.Now()
	cutoff := now.Add(-e.tolerance)

	n := 0
	for n < len(e.buffer) && e.buffer[n].ts.Before(cutoff) {
		n++
	}
	committed := e.buffer[:n]

	next := e.baseline.Clone()
	records := make([][]byte, 0, n)
	for _, c := range committed {
		if err := e.applier.Apply(next, c.event); err != nil {
			return e.fail(newApplicationError(c.ts, err))
		}
		if c.record != nil {
			records = append(records, c.record)
		}
	}

	if err := e.journal.Append(ctx, records); err != nil {
		return e.fail(newIOError("append journal", err))
	}

	e.baseline = next
	if now.After(e.watermark) {
		e.watermark = now
	}
	e.buffer = append([]entry[E](nil), e.buffer[n:]...)

	e.metrics.observeSweep(len(records), time.Since(start))
	e.metrics.setPending(len(e.buffer))
	e.metrics.setWatermark(e.watermark)
	if n > 0 {
		e.logger.Debug("sweep committed events",
			"committed", n,
			"appended", len(records),
			"pending", len(e.buffer),
			"watermark", e.watermark)
	}
	return nil
}

// fail poisons the engine. Caller must hold mu.
func (e *Engine[S, E]) fail(cause error) error {
	err := newEngineFailedError(cause)
	e.failed = err
	e.sched.close()
	e.metrics.observeSweepFailure()
	e.onFatal(err)
	return err
}

// checkUsable reports why the engine cannot take work. Caller must hold mu.
func (e *Engine[S, E]) checkUsable() error {
	if e.closed {
		return ErrClosed
	}
	if e.failed != nil {
		return e.failed
	}
	return nil
}

// State returns Current without copying. Callers must not mutate it.
func (e *Engine[S, E]) State() S {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Baseline returns the committed state without copying. Callers must not
// mutate it.
func (e *Engine[S, E]) Baseline() S {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseline
}

// Watermark returns the instant at or before which events are rejected.
func (e *Engine[S, E]) Watermark() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.watermark
}

// Pending returns the number of events in the tolerance window.
func (e *Engine[S, E]) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer)
}

// PendingEvents returns a copy of the pending events in buffer order.
func (e *Engine[S, E]) PendingEvents() []E {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]E, len(e.buffer))
	for i, ent := range e.buffer {
		out[i] = ent.event
	}
	return out
}

// Tolerance returns the configured tolerance.
func (e *Engine[S, E]) Tolerance() time.Duration {
	return e.tolerance
}

// Close stops scheduled sweeps and closes the journal if the engine opened
// it. Pending events are not flushed; they are lost unless a Sweep commits
// them first.
func (e *Engine[S, E]) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.sched.close()

	if e.ownsJournal {
		if err := e.journal.Close(); err != nil {
			return fmt.Errorf("close journal: %w", err)
		}
	}
	return nil
}

// insertIndex returns the position for an event at ts: after every entry
// with a timestamp at or before ts.
func insertIndex[E any](buf []entry[E], ts time.Time) int {
	return sort.Search(len(buf), func(i int) bool {
		return buf[i].ts.After(ts)
	})
}
