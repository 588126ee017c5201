package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes recorded in the submitted_total counter.
const (
	resultAccepted           = "accepted"
	resultTooOld             = "too_old"
	resultInvalidTimestamp   = "invalid_timestamp"
	resultApplicationFailure = "application_failure"
	resultUnencodable        = "unencodable"
)

// Metrics holds the engine's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	submitted     *prometheus.CounterVec
	committed     prometheus.Counter
	sweeps        prometheus.Counter
	sweepFailures prometheus.Counter
	sweepDuration prometheus.Histogram
	pending       prometheus.Gauge
	watermark     prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them with reg.
// Panics if a collector with the same name is already registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "endog",
			Subsystem: "engine",
			Name:      "submitted_total",
			Help:      "Events submitted, by outcome",
		}, []string{"result"}),
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "endog",
			Subsystem: "engine",
			Name:      "committed_total",
			Help:      "Events committed to the journal",
		}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "endog",
			Subsystem: "engine",
			Name:      "sweeps_total",
			Help:      "Sweeps run, including empty ones",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "endog",
			Subsystem: "engine",
			Name:      "sweep_failures_total",
			Help:      "Sweeps that failed and stopped the engine",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "endog",
			Subsystem: "engine",
			Name:      "sweep_duration_seconds",
			Help:      "Time spent folding and journaling a sweep",
			Buckets:   prometheus.DefBuckets,
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "endog",
			Subsystem: "engine",
			Name:      "pending_events",
			Help:      "Events in the tolerance window, not yet committed",
		}),
		watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "endog",
			Subsystem: "engine",
			Name:      "watermark_timestamp_seconds",
			Help:      "Unix timestamp of the engine watermark",
		}),
	}

	reg.MustRegister(
		m.submitted,
		m.committed,
		m.sweeps,
		m.sweepFailures,
		m.sweepDuration,
		m.pending,
		m.watermark,
	)
	return m
}

func (m *Metrics) observeSubmit(result string) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(result).Inc()
}

func (m *Metrics) observeSweep(committed int, took time.Duration) {
	if m == nil {
		return
	}
	m.sweeps.Inc()
	m.committed.Add(float64(committed))
	m.sweepDuration.Observe(took.Seconds())
}

func (m *Metrics) observeSweepFailure() {
	if m == nil {
		return
	}
	m.sweepFailures.Inc()
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *Metrics) setWatermark(t time.Time) {
	if m == nil {
		return
	}
	m.watermark.Set(float64(t.UnixNano()) / 1e9)
}
