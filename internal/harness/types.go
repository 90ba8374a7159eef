package harness

import (
	"github.com/roach88/filtergate/internal/trace"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace holds every call, execution and settlement in order.
	Trace *trace.Trace `json:"trace"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult(name, runID, filter string) *Result {
	return &Result{
		Pass: true,
		Trace: &trace.Trace{
			Name:   name,
			RunID:  runID,
			Filter: filter,
			Events: []trace.Event{},
		},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Record appends an event to the trace.
func (r *Result) Record(ev trace.Event) {
	r.Trace.Events = append(r.Trace.Events, ev)
}
