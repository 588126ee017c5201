package engine

import (
	"container/heap"
	"sync"
	"time"
)

// sweepEpsilon is added to every expiry so that the tolerance window has
// strictly passed when the sweep runs.
const sweepEpsilon = time.Millisecond

// scheduler runs a callback once each scheduled deadline has passed.
//
// Deadlines live in a min-heap; only the earliest one has a timer armed.
// Several deadlines that fall due together produce a single callback.
//
// The callback never runs before the deadline it serves, even if the clock's
// timer wakes early: on an early wake the timer is re-armed for the remaining
// delta. Callbacks run without the scheduler lock held.
//
// Thread-safety: schedule and close are safe from any goroutine.
type scheduler struct {
	clock Clock
	fire  func()

	mu        sync.Mutex
	deadlines deadlineHeap
	stop      func() bool
	armed     time.Time // deadline the live timer was armed for
	gen       uint64    // incremented on every arm; stale timers compare against it
	closed    bool
}

func newScheduler(clock Clock, fire func()) *scheduler {
	return &scheduler{
		clock: clock,
		fire:  fire,
	}
}

// schedule registers a deadline. The timer is re-armed only when the new
// deadline is earlier than the one currently armed.
func (s *scheduler) schedule(deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	heap.Push(&s.deadlines, deadline)
	if s.stop == nil || deadline.Before(s.armed) {
		s.arm()
	}
}

// pending returns the number of deadlines that have not fired.
func (s *scheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadlines.Len()
}

// close stops the timer and drops every pending deadline.
func (s *scheduler) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.disarm()
	s.deadlines = nil
}

// arm starts a timer for the earliest deadline. Caller must hold mu.
func (s *scheduler) arm() {
	s.disarm()
	if s.deadlines.Len() == 0 {
		return
	}

	head := s.deadlines[0]
	delay := max(head.Sub(s.clock.Now()), 0)

	s.gen++
	gen := s.gen
	s.armed = head
	s.stop = s.clock.AfterFunc(delay, func() { s.onTimer(gen) })
}

// disarm stops the live timer, if any. Caller must hold mu.
func (s *scheduler) disarm() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.armed = time.Time{}
}

func (s *scheduler) onTimer(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.stop = nil

	now := s.clock.Now()
	due := false
	for s.deadlines.Len() > 0 && !s.deadlines[0].After(now) {
		heap.Pop(&s.deadlines)
		due = true
	}
	// Early wakes land here with due == false and simply re-arm.
	s.arm()
	s.mu.Unlock()

	if due {
		s.fire()
	}
}

// deadlineHeap is a min-heap of deadlines for container/heap.
type deadlineHeap []time.Time

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].Before(h[j]) }
func (h deadlineHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *deadlineHeap) Push(x any) {
	*h = append(*h, x.(time.Time))
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
