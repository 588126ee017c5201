package engine

import (
	"log/slog"

	"github.com/roach88/endog/internal/textio"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	clock      Clock
	logger     *slog.Logger
	metrics    *Metrics
	encoding   textio.Encoding
	chunkBytes int
	onFatal    func(error)
}

func defaultOptions() options {
	return options{
		clock:      SystemClock(),
		logger:     slog.Default(),
		encoding:   textio.UTF8,
		chunkBytes: textio.DefaultChunkBytes,
	}
}

// WithClock sets the clock used for the watermark and sweep timers.
//
// Default: SystemClock()
// Use testutil.ManualClock for deterministic tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records engine activity in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithEncoding sets the encoding of the journal file opened from
// Config.Path. It has no effect when Config.Journal is set.
func WithEncoding(enc textio.Encoding) Option {
	return func(o *options) {
		o.encoding = enc
	}
}

// WithChunkBytes sets the read size used when replaying the journal file
// opened from Config.Path.
func WithChunkBytes(n int) Option {
	return func(o *options) {
		o.chunkBytes = n
	}
}

// OnFatal sets the hook called when a sweep fails. The hook runs with the
// engine lock held and must not call back into the engine.
//
// Default: log the failure at Error level.
func OnFatal(f func(error)) Option {
	return func(o *options) {
		o.onFatal = f
	}
}
