package tally

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/roach88/endog/internal/engine"
)

var (
	// ErrNegativeBalance is returned when an event would take a counter
	// below zero.
	ErrNegativeBalance = errors.New("tally: negative balance")

	// ErrMissingKey is returned for events without a counter key.
	ErrMissingKey = errors.New("tally: missing key")
)

// Event changes one counter.
type Event struct {
	ID    string    `json:"id,omitempty" yaml:"id,omitempty"`
	Time  time.Time `json:"time" yaml:"time"`
	Key   string    `json:"key" yaml:"key"`
	Delta int64     `json:"delta" yaml:"delta"`
	Note  string    `json:"note,omitempty" yaml:"note,omitempty"`
}

// State maps counter keys to their values. Counters are never negative;
// counters that reach zero are removed.
type State map[string]int64

// Clone returns a copy of s. The copy of a nil State is empty, not nil.
func (s State) Clone() State {
	out := make(State, len(s))
	maps.Copy(out, s)
	return out
}

// Keys returns the counter keys in sorted order.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Total returns the sum of every counter.
func (s State) Total() int64 {
	var total int64
	for _, v := range s {
		total += v
	}
	return total
}

// Apply adds ev.Delta to the counter ev.Key.
func Apply(s State, ev Event) error {
	if ev.Key == "" {
		return ErrMissingKey
	}
	next := s[ev.Key] + ev.Delta
	if next < 0 {
		return fmt.Errorf("%w: %s would be %d", ErrNegativeBalance, ev.Key, next)
	}
	if next == 0 {
		delete(s, ev.Key)
		return nil
	}
	s[ev.Key] = next
	return nil
}

// Timestamp returns the event time.
func Timestamp(ev Event) time.Time {
	return ev.Time
}

// Engine is an endog engine over tally events.
type Engine = engine.Engine[State, Event]

// Config returns the engine configuration for a tally journal at path.
// Set Journal on the result to use another backend.
func Config(path string, tolerance time.Duration) engine.Config[State, Event] {
	return engine.Config[State, Event]{
		Path:        path,
		Initial:     State{},
		Applier:     engine.ApplyFunc[State, Event](Apply),
		Timestamper: engine.TimestampFunc[Event](Timestamp),
		Tolerance:   tolerance,
	}
}

// Open opens a tally engine with cfg.
func Open(ctx context.Context, cfg engine.Config[State, Event], opts ...engine.Option) (*Engine, error) {
	return engine.Open(ctx, cfg, opts...)
}
