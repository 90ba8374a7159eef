// Package config describes filter strategies as data.
//
// A Config can be written as YAML or CUE. Both are validated against the
// embedded CUE schema (#Filter) and then against the cross-field rules in
// Validate, so the same file is accepted or rejected whichever format it
// arrives in.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/idle"
)

// Kind selects the strategy.
type Kind string

const (
	// KindThrottle selects filter.Throttle.
	KindThrottle Kind = "throttle"
	// KindDebounce selects filter.Debounce.
	KindDebounce Kind = "debounce"
	// KindIdle selects idle.Detector: ms is the quiet period after which
	// activity is considered over.
	KindIdle Kind = "idle"
)

// Config is the serialisable form of a strategy and its options.
// Durations are whole milliseconds; values at or below zero mean "run
// synchronously, every time".
type Config struct {
	Kind           Kind   `yaml:"kind" json:"kind"`
	Name           string `yaml:"name,omitempty" json:"name,omitempty"`
	MS             *int64 `yaml:"ms,omitempty" json:"ms,omitempty"`
	Leading        *bool  `yaml:"leading,omitempty" json:"leading,omitempty"`
	Trailing       *bool  `yaml:"trailing,omitempty" json:"trailing,omitempty"`
	RejectOnCancel bool   `yaml:"reject_on_cancel,omitempty" json:"reject_on_cancel,omitempty"`
	MaxWait        *int64 `yaml:"max_wait,omitempty" json:"max_wait,omitempty"`
}

// ValidationError is a cross-field rule violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the rules the schema cannot express on its own. It does
// not consult the CUE schema; see CheckSchema.
func (c *Config) Validate() error {
	switch c.Kind {
	case KindThrottle:
		if c.MS == nil {
			return &ValidationError{Field: "ms", Message: "throttle requires a window"}
		}
		if c.MaxWait != nil {
			return &ValidationError{Field: "max_wait", Message: "not valid for throttle"}
		}
	case KindDebounce, KindIdle:
		if c.Leading != nil {
			return &ValidationError{Field: "leading", Message: "only valid for throttle"}
		}
		if c.Trailing != nil && !*c.Trailing {
			return &ValidationError{Field: "trailing", Message: fmt.Sprintf("%s is always trailing-edge", c.Kind)}
		}
	case "":
		return &ValidationError{Field: "kind", Message: "kind is required"}
	default:
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", c.Kind)}
	}
	return nil
}

// Window returns the throttle window, debounce delay or idle timeout.
// An unset debounce delay or idle timeout defaults to
// filter.DefaultDebounceDelay.
func (c *Config) Window() time.Duration {
	if c.MS == nil {
		if c.Kind == KindDebounce || c.Kind == KindIdle {
			return filter.DefaultDebounceDelay
		}
		return 0
	}
	return time.Duration(*c.MS) * time.Millisecond
}

// Options converts the config into strategy options.
func (c *Config) Options() []filter.Option {
	var opts []filter.Option
	if c.Leading != nil {
		opts = append(opts, filter.WithLeading(*c.Leading))
	}
	if c.Trailing != nil {
		opts = append(opts, filter.WithTrailing(*c.Trailing))
	}
	if c.RejectOnCancel {
		opts = append(opts, filter.WithRejectOnCancel(true))
	}
	if c.MaxWait != nil {
		opts = append(opts, filter.WithMaxWait(filter.Static(time.Duration(*c.MaxWait)*time.Millisecond)))
	}
	if c.Name != "" {
		opts = append(opts, filter.WithName(c.Name))
	}
	return opts
}

// String renders the config compactly, e.g. "debounce(ms=500, max_wait=1500)".
func (c *Config) String() string {
	var parts []string
	if c.Name != "" {
		parts = append(parts, "name="+c.Name)
	}
	if c.MS != nil {
		parts = append(parts, fmt.Sprintf("ms=%d", *c.MS))
	}
	if c.Leading != nil {
		parts = append(parts, fmt.Sprintf("leading=%t", *c.Leading))
	}
	if c.Trailing != nil {
		parts = append(parts, fmt.Sprintf("trailing=%t", *c.Trailing))
	}
	if c.MaxWait != nil {
		parts = append(parts, fmt.Sprintf("max_wait=%d", *c.MaxWait))
	}
	if c.RejectOnCancel {
		parts = append(parts, "reject_on_cancel=true")
	}
	return fmt.Sprintf("%s(%s)", c.Kind, strings.Join(parts, ", "))
}

// Build constructs the strategy described by cfg with a fixed window.
// extra options are applied after the config's own (clock, logger).
func Build[R any](cfg Config, extra ...filter.Option) (filter.Strategy[R], error) {
	return BuildWithWindow[R](cfg, filter.Static(cfg.Window()), extra...)
}

// BuildWithWindow is Build with a caller-supplied window source, typically a
// *filter.Live so the window can change while the strategy runs.
func BuildWithWindow[R any](cfg Config, window filter.Value[time.Duration], extra ...filter.Option) (filter.Strategy[R], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := append(cfg.Options(), extra...)

	switch cfg.Kind {
	case KindThrottle:
		return filter.NewThrottle[R](window, opts...), nil
	case KindIdle:
		return nil, fmt.Errorf("%s does not filter calls; use BuildIdle", cfg.Kind)
	default:
		return filter.NewDebounce[R](window, opts...), nil
	}
}

// BuildIdle constructs the idle detector described by cfg. onStop runs each
// time a stream of activity ends.
func BuildIdle(cfg Config, onStop func(), extra ...filter.Option) (*idle.Detector, error) {
	if cfg.Kind != KindIdle {
		return nil, fmt.Errorf("%s is not an idle config", cfg.Kind)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := append(cfg.Options(), extra...)
	return idle.New(cfg.Window(), onStop, opts...), nil
}

// Int64 returns a pointer to v. Convenience for building configs in code.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
