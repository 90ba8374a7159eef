package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/filtergate/internal/clock"
	"github.com/roach88/filtergate/internal/config"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/future"
	"github.com/roach88/filtergate/internal/trace"
)

// Epoch is time zero of every scenario run.
var Epoch = time.Unix(0, 0).UTC()

// maxTimerFirings bounds a run without a horizon. A strategy that keeps
// rescheduling itself would otherwise never go idle.
const maxTimerFirings = 100000

// Option configures a Run.
type Option func(*Harness)

// WithIDGenerator sets the run ID source used when the scenario has no
// run_id. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(h *Harness) {
		h.ids = g
	}
}

// WithLogger sets the logger handed to the strategy. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Harness runs one scenario on a manual clock.
//
// All timer callbacks fire synchronously on the Run goroutine, so the trace
// is byte-for-byte reproducible.
type Harness struct {
	ids    IDGenerator
	logger *slog.Logger

	clk    *clock.Manual
	seq    *clock.Sequence
	calls  []Call
	window *filter.Live[time.Duration]

	outcomes []outcome
	reported []bool
	last     int // index of the call most recently placed
	result   *Result
}

// outcome reads a placed call's future as trace text.
type outcome func() (state future.State, value string, err error)

func settled[T any](f *future.Future[T]) outcome {
	return func() (future.State, string, error) {
		state := f.State()
		if state == future.Pending {
			return state, "", nil
		}
		v, err := f.Result()
		if err != nil {
			return state, "", err
		}
		return state, fmt.Sprint(v), nil
	}
}

// Run executes a scenario and evaluates its assertions.
//
// Timers due at or before a call's time fire before the call is made.
// After each call and each timer firing, newly settled futures are
// recorded in call order.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		ids:    UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clk:    clock.NewManual(Epoch),
		seq:    clock.NewSequence(),
		calls:  scenario.Calls,
	}
	for _, opt := range opts {
		opt(h)
	}

	runID := scenario.RunID
	if runID == "" {
		runID = h.ids.Generate()
	}
	h.result = NewResult(scenario.Name, runID, scenario.Filter.String())

	h.window = filter.NewLive(scenario.Filter.Window())
	place, stop, err := h.bind(scenario.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}
	defer stop()

	h.outcomes = make([]outcome, len(scenario.Calls))
	h.reported = make([]bool, len(scenario.Calls))

	for i, c := range scenario.Calls {
		if err := h.advanceTo(Epoch.Add(ms(c.At))); err != nil {
			return nil, err
		}
		if c.MS != nil {
			h.window.Set(ms(*c.MS))
		}

		h.record(trace.Event{Kind: trace.KindCall, Call: i + 1, Arg: c.Arg})
		h.last = i
		h.outcomes[i] = place(i)
		h.poll()
	}

	if scenario.Horizon > 0 {
		if err := h.advanceTo(Epoch.Add(ms(scenario.Horizon))); err != nil {
			return nil, err
		}
	} else if err := h.drain(); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// bind builds the filter cfg describes. place makes call idx through it;
// stop tears it down.
func (h *Harness) bind(cfg config.Config) (place func(idx int) outcome, stop func(), err error) {
	opts := []filter.Option{filter.WithClock(h.clk), filter.WithLogger(h.logger)}

	if cfg.Kind == config.KindIdle {
		// Each time activity ends, the call that ended it is the execution.
		det, err := config.BuildIdle(cfg, func() {
			h.record(trace.Event{Kind: trace.KindExec, Call: h.last + 1, Arg: h.calls[h.last].Arg})
		}, opts...)
		if err != nil {
			return nil, nil, err
		}
		place = func(idx int) outcome {
			if h.calls[idx].End {
				return settled(future.NewResolved(det.End()))
			}
			return settled(det.Touch())
		}
		return place, det.Stop, nil
	}

	strategy, err := config.BuildWithWindow[string](cfg, h.window, opts...)
	if err != nil {
		return nil, nil, err
	}
	fn := filter.Wrap(strategy, h.target)
	place = func(idx int) outcome {
		return settled(fn(context.Background(), idx))
	}
	return place, strategy.Stop, nil
}

// target echoes its call's argument, or fails if the call says so.
func (h *Harness) target(_ context.Context, idx int) (string, error) {
	c := h.calls[idx]
	h.record(trace.Event{Kind: trace.KindExec, Call: idx + 1, Arg: c.Arg})
	if c.Fail != "" {
		return "", errors.New(c.Fail)
	}
	return c.Arg, nil
}

// advanceTo fires due timers one deadline at a time, then moves to t.
func (h *Harness) advanceTo(t time.Time) error {
	for fired := 0; ; fired++ {
		if fired > maxTimerFirings {
			return fmt.Errorf("timers still firing after %d steps", maxTimerFirings)
		}
		next, ok := h.clk.Next()
		if !ok || next.After(t) {
			break
		}
		h.clk.AdvanceTo(next)
		h.poll()
	}
	h.clk.AdvanceTo(t)
	return nil
}

// drain fires timers until none remain.
func (h *Harness) drain() error {
	for fired := 0; ; fired++ {
		if fired > maxTimerFirings {
			return fmt.Errorf("timers still firing after %d steps", maxTimerFirings)
		}
		next, ok := h.clk.Next()
		if !ok {
			return nil
		}
		h.clk.AdvanceTo(next)
		h.poll()
	}
}

// poll records settlements that have not been reported yet.
func (h *Harness) poll() {
	for i, read := range h.outcomes {
		if read == nil || h.reported[i] {
			continue
		}
		state, v, err := read()
		if state == future.Pending {
			continue
		}
		h.reported[i] = true

		ev := trace.Event{Call: i + 1}
		switch state {
		case future.Resolved:
			ev.Kind, ev.Value = trace.KindResolve, v
		case future.Canceled:
			ev.Kind, ev.Error = trace.KindCancel, cancelReason(err)
		default:
			ev.Kind, ev.Error = trace.KindReject, err.Error()
		}
		h.record(ev)
	}
}

func (h *Harness) record(ev trace.Event) {
	ev.Seq = h.seq.Next()
	ev.AtMS = h.clk.Now().Sub(Epoch).Milliseconds()
	h.result.Record(ev)
}

// cancelReason reduces a cancellation to its code.
func cancelReason(err error) string {
	var ce *filter.CancelError
	if errors.As(err, &ce) {
		return string(ce.Code)
	}
	return err.Error()
}

func ms(n int64) time.Duration {
	return time.Duration(n) * time.Millisecond
}
