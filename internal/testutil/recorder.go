package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/filtergate/internal/clock"
)

// Execution is one recorded run of a target function.
type Execution struct {
	Arg string
	At  time.Duration // offset from the recorder's start time
}

// Recorder is a target function that records when it ran and with what.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	clk   clock.Scheduler
	start time.Time

	mu    sync.Mutex
	execs []Execution
	fail  map[string]error
}

// NewRecorder creates a recorder measuring offsets from start on clk.
func NewRecorder(clk clock.Scheduler, start time.Time) *Recorder {
	return &Recorder{
		clk:   clk,
		start: start,
		fail:  make(map[string]error),
	}
}

// FailOn makes calls with arg return err.
func (r *Recorder) FailOn(arg string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[arg] = err
}

// Func is the target function: it records the run and returns "ran:<arg>".
func (r *Recorder) Func(_ context.Context, arg string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.execs = append(r.execs, Execution{Arg: arg, At: r.clk.Now().Sub(r.start)})
	if err, ok := r.fail[arg]; ok {
		return "", err
	}
	return fmt.Sprintf("ran:%s", arg), nil
}

// Executions returns a copy of all recorded runs in order.
func (r *Recorder) Executions() []Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Execution(nil), r.execs...)
}

// Count returns the number of recorded runs.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.execs)
}

// Args returns the argument of each run in order.
func (r *Recorder) Args() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	args := make([]string, len(r.execs))
	for i, e := range r.execs {
		args[i] = e.Arg
	}
	return args
}

// Times returns the offset of each run in order.
func (r *Recorder) Times() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	times := make([]time.Duration, len(r.execs))
	for i, e := range r.execs {
		times[i] = e.At
	}
	return times
}
