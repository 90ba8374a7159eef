package filter

import (
	"context"
	"time"

	"github.com/roach88/filtergate/internal/clock"
	"github.com/roach88/filtergate/internal/future"
)

// Strategy decides when an invocation runs and settles the future it hands
// back for that call.
//
// Apply never blocks on the invocation itself. When the strategy runs the
// invocation immediately, the returned future is already settled.
type Strategy[R any] interface {
	Apply(inv Invocation[R]) *future.Future[R]

	// Stop clears outstanding timers, settling any pending future as
	// stopped. The strategy stays usable.
	Stop()
}

// Invocation is one call to a filtered function: the context and arguments
// bound at call time plus the thunk that runs the real function with them.
// It is never mutated after creation.
type Invocation[R any] struct {
	// Ctx is the calling context bound at call time.
	Ctx context.Context

	// Args are the call arguments, kept for logging and inspection.
	Args []any

	run func() (R, error)
}

// NewInvocation builds an invocation around run.
func NewInvocation[R any](ctx context.Context, run func() (R, error), args ...any) Invocation[R] {
	if ctx == nil {
		ctx = context.Background()
	}
	return Invocation[R]{Ctx: ctx, Args: args, run: run}
}

// Invoke runs the real function. A panic is recovered and returned as a
// *PanicError so it rejects only this call's future.
func (inv Invocation[R]) Invoke() (v R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			v, err = zero, &PanicError{Value: r}
		}
	}()
	return inv.run()
}

// Wrap adapts fn into a filtered function governed by s.
//
// Each call packages ctx and arg into an Invocation, passes it to s, and
// returns the future s settles for that call. Errors returned by fn reject
// that call's future unchanged.
func Wrap[A, R any](s Strategy[R], fn func(ctx context.Context, arg A) (R, error)) func(ctx context.Context, arg A) *future.Future[R] {
	return func(ctx context.Context, arg A) *future.Future[R] {
		if ctx == nil {
			ctx = context.Background()
		}
		inv := NewInvocation(ctx, func() (R, error) {
			return fn(ctx, arg)
		}, arg)
		return s.Apply(inv)
	}
}

// WrapVariadic is Wrap for functions taking positional arguments.
// The argument slice is copied at call time.
func WrapVariadic[R any](s Strategy[R], fn func(ctx context.Context, args ...any) (R, error)) func(ctx context.Context, args ...any) *future.Future[R] {
	return func(ctx context.Context, args ...any) *future.Future[R] {
		if ctx == nil {
			ctx = context.Background()
		}
		bound := append([]any(nil), args...)
		inv := NewInvocation(ctx, func() (R, error) {
			return fn(ctx, bound...)
		}, bound...)
		return s.Apply(inv)
	}
}

// pending is a deferred execution owned by a strategy.
type pending[R any] struct {
	timer    clock.Timer
	due      time.Time // when timer was set to fire
	inv      Invocation[R]
	resolver future.Resolver[R]
}

// abandon settles a future whose execution will never run.
func abandon[R any](r future.Resolver[R], rejectOnCancel bool, cause *CancelError) {
	if rejectOnCancel {
		r.Cancel(cause)
		return
	}
	var zero R
	r.Resolve(zero)
}
