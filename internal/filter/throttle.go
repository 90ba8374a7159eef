package filter

import (
	"sync"
	"time"

	"github.com/roach88/filtergate/internal/clock"
	"github.com/roach88/filtergate/internal/future"
)

// Throttle limits executions to one leading and one trailing run per window.
//
// Decision on each call, in order:
//  1. Any pending trailing execution is abandoned (last-call-wins).
//  2. If the window has elapsed since the last execution and leading is
//     allowed, the call runs now.
//  3. Otherwise, with trailing enabled, the call is deferred to the end of
//     the window. Without trailing it is dropped and resolves with the most
//     recent successful result.
//  4. With leading disabled, a window-reset timer re-arms leading
//     suppression once a full window passes.
//
// The zero value is not usable; use NewThrottle.
type Throttle[R any] struct {
	window Value[time.Duration]
	opts   options

	mu            sync.Mutex
	lastExec      time.Time
	pending       *pending[R]
	reset         *windowReset
	firstInWindow bool
	last          R
}

type windowReset struct {
	timer clock.Timer
}

// NewThrottle creates a throttle over window. Defaults: leading edge on,
// trailing edge off, superseded calls resolve with the zero value.
func NewThrottle[R any](window Value[time.Duration], opts ...Option) *Throttle[R] {
	return &Throttle[R]{
		window:        window,
		opts:          newOptions(true, false, opts),
		firstInWindow: true,
	}
}

// Apply implements Strategy.
func (t *Throttle[R]) Apply(inv Invocation[R]) *future.Future[R] {
	fut, res := future.New[R]()
	window := t.window.Get()

	t.mu.Lock()
	now := t.opts.clock.Now()
	elapsed := now.Sub(t.lastExec)

	t.supersedeLocked(ErrCodeSuperseded)

	run, deferred := false, false
	switch {
	case window <= 0:
		run = true
	case elapsed >= window && (t.opts.leading || !t.firstInWindow):
		run = true
	case t.opts.trailing:
		delay := window - elapsed
		if delay <= 0 {
			// Suppressed only by the leading policy: wait a full window.
			delay = window
		}
		p := &pending[R]{inv: inv, resolver: res, due: now.Add(delay)}
		p.timer = t.opts.clock.AfterFunc(delay, func() { t.fire(p) })
		t.pending = p
		deferred = true
		t.opts.logger.Debug("throttle deferred", "name", t.opts.name, "delay", delay)
	}
	if run {
		t.lastExec = now
	}

	if !t.opts.leading && window > 0 && t.reset == nil {
		r := &windowReset{}
		r.timer = t.opts.clock.AfterFunc(window, func() { t.endWindow(r) })
		t.reset = r
	}
	t.firstInWindow = false
	last := t.last
	t.mu.Unlock()

	switch {
	case run:
		t.opts.logger.Debug("throttle executing", "name", t.opts.name, "edge", "leading")
		t.execute(inv, res)
	case !deferred:
		t.opts.logger.Debug("throttle dropped call", "name", t.opts.name, "elapsed", elapsed)
		res.Resolve(last)
	}
	return fut
}

// Stop abandons the pending trailing execution, if any, and clears the
// window-reset timer. The next call starts a fresh window.
func (t *Throttle[R]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.supersedeLocked(ErrCodeStopped)
	if t.reset != nil {
		t.reset.timer.Stop()
		t.reset = nil
	}
	t.firstInWindow = true
}

// supersedeLocked abandons the pending trailing execution. Caller holds t.mu.
func (t *Throttle[R]) supersedeLocked(code CancelCode) {
	p := t.pending
	if p == nil {
		return
	}
	t.pending = nil
	p.timer.Stop()
	abandon(p.resolver, t.opts.rejectOnCancel, &CancelError{Code: code, Strategy: "throttle", Name: t.opts.name})
}

// fire runs a trailing execution unless a newer call replaced it. It never
// reads the clock: the window restarts at the deadline the timer was set for.
func (t *Throttle[R]) fire(p *pending[R]) {
	t.mu.Lock()
	if t.pending != p {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.lastExec = p.due
	t.mu.Unlock()

	t.opts.logger.Debug("throttle executing", "name", t.opts.name, "edge", "trailing")
	t.execute(p.inv, p.resolver)
}

// endWindow re-arms leading suppression.
func (t *Throttle[R]) endWindow(r *windowReset) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.reset != r {
		return
	}
	t.reset = nil
	t.firstInWindow = true
}

func (t *Throttle[R]) execute(inv Invocation[R], res future.Resolver[R]) {
	v, err := inv.Invoke()
	if err == nil {
		t.mu.Lock()
		t.last = v
		t.mu.Unlock()
	}
	res.Settle(v, err)
}
