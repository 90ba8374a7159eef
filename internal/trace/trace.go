// Package trace records what a filtered function did over a run.
//
// A trace is an ordered list of events: every call made through the
// wrapper, every execution of the target, and every settlement of a
// caller's future. Seq is assigned in the order events are observed, which
// under a manual clock is fully deterministic.
package trace

import (
	"fmt"
	"strings"
)

// Kind classifies an event.
type Kind string

const (
	KindCall    Kind = "call"
	KindExec    Kind = "exec"
	KindResolve Kind = "resolve"
	KindReject  Kind = "reject"
	KindCancel  Kind = "cancel"
)

// Event is a single trace entry.
//
// Call is the 1-based index of the call the event belongs to. For exec
// events it is the call whose arguments were used.
type Event struct {
	Seq   int64  `json:"seq"`
	AtMS  int64  `json:"at_ms"`
	Kind  Kind   `json:"kind"`
	Call  int    `json:"call"`
	Arg   string `json:"arg,omitempty"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// Trace is a named, ordered event list.
type Trace struct {
	Name   string  `json:"name"`
	RunID  string  `json:"run_id,omitempty"`
	Filter string  `json:"filter,omitempty"`
	Events []Event `json:"events"`
}

// OfKind returns the events of the given kind, in order.
func (t *Trace) OfKind(kind Kind) []Event {
	var out []Event
	for _, e := range t.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of events of the given kind.
func (t *Trace) Count(kind Kind) int {
	n := 0
	for _, e := range t.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Settlement returns the settlement event for a call, if any.
func (t *Trace) Settlement(call int) (Event, bool) {
	for _, e := range t.Events {
		if e.Call != call {
			continue
		}
		switch e.Kind {
		case KindResolve, KindReject, KindCancel:
			return e, true
		}
	}
	return Event{}, false
}

// canonicalMap converts the trace into plain maps for MarshalCanonical.
// Empty optional fields are omitted.
func (t *Trace) canonicalMap() map[string]any {
	events := make([]any, len(t.Events))
	for i, e := range t.Events {
		m := map[string]any{
			"seq":   e.Seq,
			"at_ms": e.AtMS,
			"kind":  string(e.Kind),
			"call":  e.Call,
		}
		if e.Arg != "" {
			m["arg"] = e.Arg
		}
		if e.Value != "" {
			m["value"] = e.Value
		}
		if e.Error != "" {
			m["error"] = e.Error
		}
		events[i] = m
	}

	out := map[string]any{
		"name":   t.Name,
		"events": events,
	}
	if t.RunID != "" {
		out["run_id"] = t.RunID
	}
	if t.Filter != "" {
		out["filter"] = t.Filter
	}
	return out
}

// Canonical returns the trace as canonical JSON.
func (t *Trace) Canonical() ([]byte, error) {
	return MarshalCanonical(t.canonicalMap())
}

// FormatText renders one line per event:
//
//	#3    1000ms  exec     call=2 arg=b
func FormatText(events []Event) string {
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "#%-4d %6dms  %-8s call=%d", e.Seq, e.AtMS, e.Kind, e.Call)
		if e.Arg != "" {
			fmt.Fprintf(&b, " arg=%s", e.Arg)
		}
		if e.Value != "" {
			fmt.Fprintf(&b, " value=%s", e.Value)
		}
		if e.Error != "" {
			fmt.Fprintf(&b, " error=%q", e.Error)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
