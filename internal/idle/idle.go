// Package idle detects the end of a stream of activity.
//
// Every Touch marks the stream active and pushes back a debounced End. When
// no Touch arrives for the timeout, End runs and the stop callback fires
// once. A source that knows precisely when activity ended (a native
// "scroll end" signal, a closed connection) may call End directly; the
// debounced End that follows is then a no-op.
package idle

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/future"
)

// Detector tracks whether activity is ongoing.
type Detector struct {
	onStop   func()
	debounce *filter.Debounce[bool]
	end      func(ctx context.Context, _ struct{}) *future.Future[bool]

	mu     sync.Mutex
	active bool
}

// New creates a detector that calls onStop once activity has been quiet for
// timeout. opts are passed to the underlying debounce (clock, logger,
// max-wait).
func New(timeout time.Duration, onStop func(), opts ...filter.Option) *Detector {
	d := &Detector{onStop: onStop}
	d.debounce = filter.NewDebounce[bool](filter.Static(timeout), opts...)
	d.end = filter.Wrap[struct{}, bool](d.debounce, func(context.Context, struct{}) (bool, error) {
		return d.End(), nil
	})
	return d
}

// Touch records activity. The returned future resolves true if this touch
// was the one that ended the stream, false if a later touch superseded it or
// the stream had already been ended directly.
func (d *Detector) Touch() *future.Future[bool] {
	d.mu.Lock()
	d.active = true
	d.mu.Unlock()

	return d.end(context.Background(), struct{}{})
}

// End marks activity finished and calls onStop if the stream was active.
// Reports whether this call performed the transition.
func (d *Detector) End() bool {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return false
	}
	d.active = false
	d.mu.Unlock()

	if d.onStop != nil {
		d.onStop()
	}
	return true
}

// Active reports whether activity is ongoing.
func (d *Detector) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Stop cancels the pending debounced End without ending the stream.
func (d *Detector) Stop() {
	d.debounce.Stop()
}
