package filter

import (
	"sync"
	"time"

	"github.com/roach88/filtergate/internal/clock"
	"github.com/roach88/filtergate/internal/future"
)

// Debounce runs the latest call once calls stop arriving for the delay.
//
// With WithMaxWait, a ceiling timer started by the first call of a burst
// forces the latest call to run no later than max-wait after that first
// call, however often the main timer is reset. Whichever of the two timers
// fires first clears the other without cancelling anything: the latest
// call still runs and its future resolves normally.
//
// The zero value is not usable; use NewDebounce.
type Debounce[R any] struct {
	delay Value[time.Duration]
	opts  options

	mu      sync.Mutex
	pending *pending[R]
	ceiling *ceiling
}

type ceiling struct {
	timer clock.Timer
}

// NewDebounce creates a debounce over delay. Debounce is always
// trailing-edge; WithLeading and WithTrailing have no effect.
func NewDebounce[R any](delay Value[time.Duration], opts ...Option) *Debounce[R] {
	return &Debounce[R]{
		delay: delay,
		opts:  newOptions(false, true, opts),
	}
}

// Apply implements Strategy.
func (d *Debounce[R]) Apply(inv Invocation[R]) *future.Future[R] {
	fut, res := future.New[R]()
	delay := d.delay.Get()
	maxWait, hasCeiling := time.Duration(0), d.opts.maxWait != nil
	if hasCeiling {
		maxWait = d.opts.maxWait.Get()
	}

	d.mu.Lock()
	d.supersedeLocked(ErrCodeSuperseded)

	if delay <= 0 || (hasCeiling && maxWait <= 0) {
		d.clearCeilingLocked()
		d.mu.Unlock()

		d.opts.logger.Debug("debounce executing", "name", d.opts.name, "trigger", "immediate")
		res.Settle(inv.Invoke())
		return fut
	}

	if hasCeiling && d.ceiling == nil {
		c := &ceiling{}
		c.timer = d.opts.clock.AfterFunc(maxWait, func() { d.flush(c) })
		d.ceiling = c
	}

	p := &pending[R]{inv: inv, resolver: res}
	p.timer = d.opts.clock.AfterFunc(delay, func() { d.fire(p) })
	d.pending = p
	d.mu.Unlock()

	d.opts.logger.Debug("debounce deferred", "name", d.opts.name, "delay", delay)
	return fut
}

// Stop abandons the pending execution, if any, and clears both timers.
func (d *Debounce[R]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.supersedeLocked(ErrCodeStopped)
	d.clearCeilingLocked()
}

// supersedeLocked abandons the pending execution. Caller holds d.mu.
func (d *Debounce[R]) supersedeLocked(code CancelCode) {
	p := d.pending
	if p == nil {
		return
	}
	d.pending = nil
	p.timer.Stop()
	abandon(p.resolver, d.opts.rejectOnCancel, &CancelError{Code: code, Strategy: "debounce", Name: d.opts.name})
}

func (d *Debounce[R]) clearCeilingLocked() {
	if d.ceiling == nil {
		return
	}
	d.ceiling.timer.Stop()
	d.ceiling = nil
}

// fire is the main timer: the burst went quiet.
func (d *Debounce[R]) fire(p *pending[R]) {
	d.mu.Lock()
	if d.pending != p {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.clearCeilingLocked()
	d.mu.Unlock()

	d.opts.logger.Debug("debounce executing", "name", d.opts.name, "trigger", "delay")
	p.resolver.Settle(p.inv.Invoke())
}

// flush is the ceiling timer: max-wait elapsed, run the latest call now.
func (d *Debounce[R]) flush(c *ceiling) {
	d.mu.Lock()
	if d.ceiling != c {
		d.mu.Unlock()
		return
	}
	d.ceiling = nil
	p := d.pending
	d.pending = nil
	if p != nil {
		p.timer.Stop()
	}
	d.mu.Unlock()

	if p == nil {
		return
	}
	d.opts.logger.Debug("debounce executing", "name", d.opts.name, "trigger", "max_wait")
	p.resolver.Settle(p.inv.Invoke())
}
