package filter

import (
	"log/slog"
	"time"

	"github.com/roach88/filtergate/internal/clock"
)

// Option configures a Throttle or a Debounce.
//
// Options that only make sense for one strategy are ignored by the other:
// WithLeading and WithTrailing apply to Throttle, WithMaxWait to Debounce.
type Option func(*options)

type options struct {
	leading        bool
	trailing       bool
	rejectOnCancel bool
	maxWait        Value[time.Duration]
	clock          clock.Scheduler
	logger         *slog.Logger
	name           string
}

func newOptions(leading, trailing bool, opts []Option) options {
	o := options{
		leading:  leading,
		trailing: trailing,
		clock:    clock.Real(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithLeading controls execution on the first qualifying call of a throttle
// window. Default: true.
func WithLeading(leading bool) Option {
	return func(o *options) {
		o.leading = leading
	}
}

// WithTrailing controls the deferred execution at the end of a throttle window
// for calls that arrived mid-window. Default: false.
func WithTrailing(trailing bool) Option {
	return func(o *options) {
		o.trailing = trailing
	}
}

// WithRejectOnCancel makes superseded pending futures settle as Canceled
// instead of resolving with the zero value.
func WithRejectOnCancel(reject bool) Option {
	return func(o *options) {
		o.rejectOnCancel = reject
	}
}

// WithMaxWait sets the debounce ceiling: a pending execution is forced to run
// no later than max-wait after the first call of a burst. A nil value removes
// the ceiling.
func WithMaxWait(maxWait Value[time.Duration]) Option {
	return func(o *options) {
		o.maxWait = maxWait
	}
}

// WithClock sets the scheduler used for timestamps and timers.
// Default: the wall clock.
func WithClock(c clock.Scheduler) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger for decision tracing at debug level.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithName labels the strategy in logs and cancellation errors.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}
