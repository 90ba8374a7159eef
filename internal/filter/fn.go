package filter

import (
	"context"
	"time"

	"github.com/roach88/filtergate/internal/future"
)

// DefaultDebounceDelay is the debounce delay applied when a configuration
// leaves it unset.
const DefaultDebounceDelay = 200 * time.Millisecond

// ThrottleFn wraps fn in a throttle over a fixed window with the common
// defaults: leading edge on, trailing edge off. Options override them.
//
// Example:
//
//	save := filter.ThrottleFn(store.Save, time.Second, filter.WithTrailing(true))
//	save(ctx, doc) // runs now
//	save(ctx, doc) // runs at the end of the window
func ThrottleFn[A, R any](fn func(ctx context.Context, arg A) (R, error), window time.Duration, opts ...Option) func(ctx context.Context, arg A) *future.Future[R] {
	return Wrap[A, R](NewThrottle[R](Static(window), opts...), fn)
}

// DebounceFn wraps fn in a debounce over a fixed delay. Use WithMaxWait to
// bound how long a steady stream of calls can postpone execution.
func DebounceFn[A, R any](fn func(ctx context.Context, arg A) (R, error), delay time.Duration, opts ...Option) func(ctx context.Context, arg A) *future.Future[R] {
	return Wrap[A, R](NewDebounce[R](Static(delay), opts...), fn)
}
