package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/filtergate/internal/trace"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Diff     string
	Events   []trace.Event
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "  Diff (-want +got):\n%s", e.Diff)
	}

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, line := range strings.Split(strings.TrimRight(trace.FormatText(e.Events), "\n"), "\n") {
		fmt.Fprintf(&buf, "  %s\n", line)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result's trace and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertExecCount:
			err = assertExecCount(result.Trace, assertion)
		case AssertExecAt:
			err = assertExecAt(result.Trace, assertion)
		case AssertSettled:
			err = assertSettled(result.Trace, assertion)
		case AssertMaxPerWindow:
			err = assertMaxPerWindow(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertExecCount(tr *trace.Trace, a Assertion) error {
	got := tr.Count(trace.KindExec)
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertExecCount,
		Expected: fmt.Sprintf("%d executions", a.Count),
		Actual:   fmt.Sprintf("%d executions", got),
		Events:   tr.Events,
	}
}

func assertExecAt(tr *trace.Trace, a Assertion) error {
	execs := tr.OfKind(trace.KindExec)
	times := make([]int64, len(execs))
	args := make([]string, len(execs))
	for i, e := range execs {
		times[i] = e.AtMS
		args[i] = e.Arg
	}

	if diff := cmp.Diff(a.Times, times, cmpopts.EquateEmpty()); diff != "" {
		return &AssertionError{
			Type:     AssertExecAt,
			Expected: fmt.Sprintf("executions at %v", a.Times),
			Actual:   fmt.Sprintf("executions at %v", times),
			Diff:     diff,
			Events:   tr.Events,
		}
	}
	if a.Args != nil {
		if diff := cmp.Diff(a.Args, args, cmpopts.EquateEmpty()); diff != "" {
			return &AssertionError{
				Type:     AssertExecAt,
				Expected: fmt.Sprintf("execution args %v", a.Args),
				Actual:   fmt.Sprintf("execution args %v", args),
				Diff:     diff,
				Events:   tr.Events,
			}
		}
	}
	return nil
}

func assertSettled(tr *trace.Trace, a Assertion) error {
	ev, ok := tr.Settlement(a.Call)
	got := StatePending
	if ok {
		got = stateOf(ev.Kind)
	}

	fail := func(expected, actual string) error {
		return &AssertionError{
			Type:     AssertSettled,
			Expected: fmt.Sprintf("call %d %s", a.Call, expected),
			Actual:   fmt.Sprintf("call %d %s", a.Call, actual),
			Events:   tr.Events,
		}
	}

	if got != a.State {
		return fail(a.State, got)
	}
	if !ok {
		return nil
	}
	if a.Value != nil && ev.Value != *a.Value {
		return fail(fmt.Sprintf("value %q", *a.Value), fmt.Sprintf("value %q", ev.Value))
	}
	if a.Error != "" && !strings.Contains(ev.Error, a.Error) {
		return fail(fmt.Sprintf("error containing %q", a.Error), fmt.Sprintf("error %q", ev.Error))
	}
	if a.At != nil && ev.AtMS != *a.At {
		return fail(fmt.Sprintf("settled at %dms", *a.At), fmt.Sprintf("settled at %dms", ev.AtMS))
	}
	return nil
}

// assertMaxPerWindow checks every window [t, t+Window) that starts at an
// execution. Any window holding more executions than Max contains one of
// those, so checking them is sufficient.
func assertMaxPerWindow(tr *trace.Trace, a Assertion) error {
	execs := tr.OfKind(trace.KindExec)
	for i, start := range execs {
		n := 0
		for _, e := range execs[i:] {
			if e.AtMS >= start.AtMS+a.Window {
				break
			}
			n++
		}
		if n > a.Max {
			return &AssertionError{
				Type:     AssertMaxPerWindow,
				Expected: fmt.Sprintf("at most %d executions per %dms", a.Max, a.Window),
				Actual:   fmt.Sprintf("%d executions in [%d, %d)", n, start.AtMS, start.AtMS+a.Window),
				Events:   tr.Events,
			}
		}
	}
	return nil
}

func stateOf(k trace.Kind) string {
	switch k {
	case trace.KindResolve:
		return StateResolved
	case trace.KindReject:
		return StateRejected
	case trace.KindCancel:
		return StateCanceled
	default:
		return StatePending
	}
}
