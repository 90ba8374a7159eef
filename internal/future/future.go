// Package future provides a settle-once result holder for deferred calls.
//
// A Future starts Pending and moves to exactly one terminal state: Resolved
// with a value, Rejected with an error, or Canceled with a cancellation
// cause. The first settlement wins; later attempts report false and change
// nothing, which makes the at-most-once settlement of a pending execution
// directly checkable.
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle position of a Future.
type State int

const (
	// Pending means no settlement has happened yet.
	Pending State = iota
	// Resolved means the future holds a value.
	Resolved
	// Rejected means the future holds an error from the computation.
	Rejected
	// Canceled means the computation was abandoned before it ran.
	Canceled
)

// String returns the lower-case state name used in traces.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrCanceled is matched by every cancellation error.
	ErrCanceled = errors.New("future canceled")

	// ErrPending is returned by Result while the future is unsettled.
	ErrPending = errors.New("future pending")
)

// CanceledError carries the cause passed to Resolver.Cancel.
// errors.Is(err, ErrCanceled) holds for every CanceledError.
type CanceledError struct {
	Cause error
}

func (e *CanceledError) Error() string {
	if e.Cause == nil {
		return ErrCanceled.Error()
	}
	return fmt.Sprintf("%s: %v", ErrCanceled, e.Cause)
}

// Is reports whether target is ErrCanceled.
func (e *CanceledError) Is(target error) bool {
	return target == ErrCanceled
}

func (e *CanceledError) Unwrap() error {
	return e.Cause
}

// Future is the read side of a deferred result.
type Future[T any] struct {
	mu    sync.Mutex
	state State
	value T
	err   error
	done  chan struct{}
}

// Resolver is the write side of a Future. It is a small value type and may be
// copied; all copies settle the same Future.
type Resolver[T any] struct {
	f *Future[T]
}

// New returns a pending Future and the Resolver that settles it.
func New[T any]() (*Future[T], Resolver[T]) {
	f := &Future[T]{done: make(chan struct{})}
	return f, Resolver[T]{f: f}
}

// NewResolved returns a Future already resolved with v.
func NewResolved[T any](v T) *Future[T] {
	f, r := New[T]()
	r.Resolve(v)
	return f
}

// NewRejected returns a Future already rejected with err.
func NewRejected[T any](err error) *Future[T] {
	f, r := New[T]()
	r.Reject(err)
	return f
}

// Resolve settles the future with v. Reports false if already settled.
func (r Resolver[T]) Resolve(v T) bool {
	return r.f.settle(Resolved, v, nil)
}

// Reject settles the future with err. Reports false if already settled.
func (r Resolver[T]) Reject(err error) bool {
	var zero T
	return r.f.settle(Rejected, zero, err)
}

// Cancel settles the future as canceled. The stored error is a
// *CanceledError wrapping cause. Reports false if already settled.
func (r Resolver[T]) Cancel(cause error) bool {
	var zero T
	return r.f.settle(Canceled, zero, &CanceledError{Cause: cause})
}

// Settle resolves with v when err is nil and rejects with err otherwise.
func (r Resolver[T]) Settle(v T, err error) bool {
	if err != nil {
		return r.Reject(err)
	}
	return r.Resolve(v)
}

// Future returns the future this resolver settles.
func (r Resolver[T]) Future() *Future[T] {
	return r.f
}

func (f *Future[T]) settle(state State, v T, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != Pending {
		return false
	}
	f.state = state
	f.value = v
	f.err = err
	close(f.done)
	return true
}

// Done returns a channel closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// State returns the current state.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Result returns the settled value and error without blocking.
// While pending it returns ErrPending.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Pending {
		var zero T
		return zero, ErrPending
	}
	return f.value, f.err
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
