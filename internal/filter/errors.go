package filter

import (
	"errors"
	"fmt"
)

// CancelError describes why a pending execution was abandoned before its
// timer fired. It is the cause inside the *future.CanceledError of futures
// settled under WithRejectOnCancel.
type CancelError struct {
	// Code identifies the cancellation category.
	Code CancelCode

	// Strategy is "throttle" or "debounce".
	Strategy string

	// Name is the strategy name set with WithName, if any.
	Name string
}

// CancelCode categorizes cancellations.
type CancelCode string

const (
	// ErrCodeSuperseded means a newer call replaced the pending execution.
	ErrCodeSuperseded CancelCode = "SUPERSEDED"

	// ErrCodeStopped means the strategy was stopped with work pending.
	ErrCodeStopped CancelCode = "STOPPED"
)

// Error implements the error interface.
func (e *CancelError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s pending call abandoned (name=%s)", e.Code, e.Strategy, e.Name)
	}
	return fmt.Sprintf("%s: %s pending call abandoned", e.Code, e.Strategy)
}

// IsSuperseded reports whether err is a cancellation caused by a newer call.
// Uses errors.As to handle wrapped errors.
func IsSuperseded(err error) bool {
	var ce *CancelError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeSuperseded
	}
	return false
}

// IsStopped reports whether err is a cancellation caused by Stop.
func IsStopped(err error) bool {
	var ce *CancelError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeStopped
	}
	return false
}

// PanicError is the rejection produced when the wrapped function panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("filtered function panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
