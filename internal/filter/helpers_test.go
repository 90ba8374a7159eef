package filter

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/filtergate/internal/clock"
	"github.com/roach88/filtergate/internal/future"
	"github.com/roach88/filtergate/internal/testutil"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// rig wires a recorder to a strategy on a manual clock.
type rig struct {
	clk      *clock.Manual
	rec      *testutil.Recorder
	strategy Strategy[string]
	call     func(ctx context.Context, arg string) *future.Future[string]
}

func newRig(build func(clk *clock.Manual) Strategy[string]) *rig {
	clk := clock.NewManual(epoch)
	rec := testutil.NewRecorder(clk, epoch)
	s := build(clk)
	return &rig{
		clk:      clk,
		rec:      rec,
		strategy: s,
		call:     Wrap[string, string](s, rec.Func),
	}
}

// at advances to offset d (firing due timers first) and calls with arg.
func (r *rig) at(d time.Duration, arg string) *future.Future[string] {
	r.clk.AdvanceTo(epoch.Add(d))
	return r.call(context.Background(), arg)
}

func (r *rig) stop() {
	r.strategy.Stop()
}

func (r *rig) drain() {
	r.clk.RunUntilIdle(1000)
}

func resultOf(f *future.Future[string]) (string, error) {
	return f.Result()
}
