package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Manual is a deterministic virtual clock.
//
// Time only moves when AdvanceTo, Advance or RunUntilIdle is called. Due
// timers fire synchronously on the caller's goroutine in (deadline, creation)
// order, and each callback observes Now() equal to its own deadline. This
// reproduces the single-threaded cooperative model exactly: every callback runs
// to completion before the next one starts.
//
// Callbacks may schedule and stop timers; the clock lock is never held while a
// callback runs.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    *Sequence
	timers timerHeap
}

// NewManual creates a manual clock reading start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now: start,
		seq: NewSequence(),
	}
}

// Now returns the current virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules f to run once the clock reaches Now()+d.
// Negative delays are treated as zero.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d < 0 {
		d = 0
	}
	t := &manualTimer{
		m:        m,
		deadline: m.now.Add(d),
		seq:      m.seq.Next(),
		f:        f,
		index:    -1,
	}
	heap.Push(&m.timers, t)
	return t
}

// Next reports the deadline of the earliest pending timer.
func (m *Manual) Next() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.timers) == 0 {
		return time.Time{}, false
	}
	return m.timers[0].deadline, true
}

// Pending returns the number of timers that have not fired or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// AdvanceTo moves the clock to t, firing every timer with a deadline at or
// before t. Timers scheduled by callbacks are fired too if they fall due
// before t. Returns the number of callbacks run.
//
// The clock never moves backwards; a t before Now() only fires timers that
// are already due.
func (m *Manual) AdvanceTo(t time.Time) int {
	fired := 0
	for {
		m.mu.Lock()
		if len(m.timers) == 0 || m.timers[0].deadline.After(t) {
			if t.After(m.now) {
				m.now = t
			}
			m.mu.Unlock()
			return fired
		}

		next := heap.Pop(&m.timers).(*manualTimer)
		if next.deadline.After(m.now) {
			m.now = next.deadline
		}
		f := next.f
		m.mu.Unlock()

		f()
		fired++
	}
}

// Advance moves the clock forward by d. See AdvanceTo.
func (m *Manual) Advance(d time.Duration) int {
	return m.AdvanceTo(m.Now().Add(d))
}

// RunUntilIdle fires timers one deadline at a time until none remain or limit
// callbacks have run. It reports the number fired and whether the clock
// drained. A limit <= 0 means no limit.
func (m *Manual) RunUntilIdle(limit int) (int, bool) {
	fired := 0
	for {
		deadline, ok := m.Next()
		if !ok {
			return fired, true
		}
		if limit > 0 && fired >= limit {
			return fired, false
		}
		fired += m.AdvanceTo(deadline)
	}
}

type manualTimer struct {
	m        *Manual
	deadline time.Time
	seq      int64
	f        func()
	index    int
}

// C returns nil: AfterFunc timers deliver through their callback.
func (t *manualTimer) C() <-chan time.Time {
	return nil
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	if t.index < 0 {
		return false
	}
	heap.Remove(&t.m.timers, t.index)
	return true
}

func (t *manualTimer) Reset(d time.Duration) bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	active := t.index >= 0
	if active {
		heap.Remove(&t.m.timers, t.index)
	}
	if d < 0 {
		d = 0
	}
	t.deadline = t.m.now.Add(d)
	t.seq = t.m.seq.Next()
	heap.Push(&t.m.timers, t)
	return active
}

// timerHeap orders timers by deadline, then by creation sequence.
type timerHeap []*manualTimer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
