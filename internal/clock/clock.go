// Package clock provides the time sources the filtering engine schedules on.
//
// Strategies never call time.Now or time.AfterFunc directly. They depend on a
// Scheduler so the same code runs against the wall clock in production, the
// k8s.io/utils fake clock in concurrency tests, and the deterministic Manual
// clock in the simulator.
package clock

import (
	"sync/atomic"
	"time"

	k8sclock "k8s.io/utils/clock"
)

// Timer is the handle returned by AfterFunc. Stop reports whether the timer
// was still pending.
type Timer = k8sclock.Timer

// Scheduler reads the current time and runs callbacks after a delay.
//
// A callback may call back into the Scheduler (Now, AfterFunc, Timer.Stop),
// so AfterFunc must not run it while holding a lock those methods take.
// k8sclock.RealClock and Manual meet this. The fake clock in
// k8s.io/utils/clock/testing runs callbacks under its own lock; wrap it with
// Async.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real returns a Scheduler backed by the wall clock.
func Real() Scheduler {
	return k8sclock.RealClock{}
}

// Async wraps s so AfterFunc callbacks run on their own goroutine, the way
// time.AfterFunc does.
func Async(s Scheduler) Scheduler {
	return asyncScheduler{Scheduler: s}
}

type asyncScheduler struct {
	Scheduler
}

func (a asyncScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return a.Scheduler.AfterFunc(d, func() { go f() })
}

// Sequence is a monotonic logical counter.
//
// It orders events that share a wall-clock instant: trace events in the
// simulator and timers with equal deadlines in Manual. Never derive ordering
// from timestamps alone.
//
// Sequence is safe for concurrent use.
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0. The first Next returns 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next increments and returns the next value.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}
