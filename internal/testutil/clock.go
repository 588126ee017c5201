package testutil

import (
	"slices"
	"sync"
	"time"
)

// ManualClock is a clock whose time only moves when a test advances it.
//
// Timers registered with AfterFunc fire synchronously from Advance and Set,
// in deadline order, on the caller's goroutine. This makes scheduler-driven
// behavior fully deterministic.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// Timer callbacks run without the mutex held and may call back into the clock.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int64
	timers []*manualTimer
}

type manualTimer struct {
	id       int64
	deadline time.Time
	f        func()
}

// NewManualClock creates a clock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock reaches now+d.
// The returned stop function cancels the timer and reports whether it was
// still pending.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	t := &manualTimer{id: c.nextID, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)

	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, pending := range c.timers {
			if pending.id == t.id {
				c.timers = slices.Delete(c.timers, i, i+1)
				return true
			}
		}
		return false
	}
}

// Advance moves the clock forward by d and fires every timer that is due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	c.Set(target)
}

// Set moves the clock to t and fires every timer that is due.
// Setting a time earlier than Now is ignored.
//
// Timers are fired one at a time with the clock reading each timer's
// deadline, so a callback that reads Now sees the instant it was due.
// Timers registered by a callback are fired in the same call if they fall
// due before t.
func (c *ManualClock) Set(t time.Time) {
	for {
		c.mu.Lock()
		if t.Before(c.now) {
			c.mu.Unlock()
			return
		}
		next := c.popDue(t)
		if next == nil {
			c.now = t
			c.mu.Unlock()
			return
		}
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		c.mu.Unlock()

		next.f()
	}
}

// PendingTimers returns the number of timers that have not fired or been
// stopped.
func (c *ManualClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// popDue removes and returns the earliest timer due at or before t.
// Ties fire in registration order. Caller must hold mu.
func (c *ManualClock) popDue(t time.Time) *manualTimer {
	best := -1
	for i, timer := range c.timers {
		if timer.deadline.After(t) {
			continue
		}
		if best < 0 || timer.deadline.Before(c.timers[best].deadline) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	timer := c.timers[best]
	c.timers = slices.Delete(c.timers, best, best+1)
	return timer
}
