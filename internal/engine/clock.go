package engine

import "time"

// Clock is the engine's source of wall time and timers.
//
// SystemClock is used in production. Tests use testutil.ManualClock so that
// sweeps happen exactly when the test advances time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f in its own goroutine (or, for manual clocks, from
	// whoever advances time) once d has elapsed. The returned function stops
	// the timer and reports whether it was still pending.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
