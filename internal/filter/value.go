package filter

import "sync/atomic"

// Value is a configuration value sampled at decision time.
//
// Strategies call Get on every Apply, so a Live or ValueFunc source can change
// a window mid-flight without rebuilding the strategy.
type Value[T any] interface {
	Get() T
}

type staticValue[T any] struct {
	v T
}

func (s staticValue[T]) Get() T { return s.v }

// Static returns a Value that always yields v.
func Static[T any](v T) Value[T] {
	return staticValue[T]{v: v}
}

// ValueFunc adapts a function to Value. It is called on every read.
type ValueFunc[T any] func() T

// Get calls f.
func (f ValueFunc[T]) Get() T { return f() }

// Live is a Value that can be replaced at any time from any goroutine.
// The zero value holds the zero T until the first Set.
type Live[T any] struct {
	p atomic.Pointer[T]
}

// NewLive creates a Live holding v.
func NewLive[T any](v T) *Live[T] {
	l := &Live[T]{}
	l.Set(v)
	return l
}

// Get returns the current value.
func (l *Live[T]) Get() T {
	v := l.p.Load()
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// Set replaces the current value. The next decision observes it.
func (l *Live[T]) Set(v T) {
	l.p.Store(&v)
}
