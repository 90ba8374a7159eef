package filter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/roach88/filtergate/internal/clock"
	"github.com/roach88/filtergate/internal/future"
)

func debounceRig(delay time.Duration, opts ...Option) *rig {
	return newRig(func(clk *clock.Manual) Strategy[string] {
		all := append([]Option{WithClock(clk), WithLogger(quietLogger())}, opts...)
		return NewDebounce[string](Static(delay), all...)
	})
}

func TestDebounce_BurstRunsOnceAfterLastCall(t *testing.T) {
	r := debounceRig(ms(500))

	first := r.at(0, "1")
	last := r.at(ms(400), "2")

	r.clk.AdvanceTo(epoch.Add(ms(500)))
	assert.Equal(t, 0, r.rec.Count(), "must not fire 500ms after the first call")

	r.drain()
	assert.Equal(t, []string{"2"}, r.rec.Args())
	assert.Equal(t, []time.Duration{ms(900)}, r.rec.Times())

	v, err := resultOf(first)
	require.NoError(t, err)
	assert.Empty(t, v, "superseded call resolves with the zero value")

	v, err = resultOf(last)
	require.NoError(t, err)
	assert.Equal(t, "ran:2", v)
}

func TestDebounce_SteadyBurstWithoutCeiling(t *testing.T) {
	r := debounceRig(ms(100))

	for i := 0; i < 20; i++ {
		r.at(ms(50*i), fmt.Sprint(i))
	}
	r.drain()

	assert.Equal(t, []string{"19"}, r.rec.Args())
	assert.Equal(t, []time.Duration{ms(50*19 + 100)}, r.rec.Times())
}

func TestDebounce_CeilingForcesExecution(t *testing.T) {
	r := debounceRig(ms(1000), WithMaxWait(Static(ms(1500))))

	var futures []*future.Future[string]
	for _, at := range []int{0, 400, 800, 1200} {
		futures = append(futures, r.at(ms(at), fmt.Sprint(at)))
	}
	r.drain()

	assert.Equal(t, []string{"1200"}, r.rec.Args(), "the latest call runs")
	assert.Equal(t, []time.Duration{ms(1500)}, r.rec.Times(), "ceiling fires 1500ms after the first call")
	assert.Equal(t, 0, r.clk.Pending(), "main timer reset at 1200 must not also fire")

	v, err := resultOf(futures[3])
	require.NoError(t, err, "ceiling flush is not a cancellation")
	assert.Equal(t, "ran:1200", v)
}

func TestDebounce_CeilingRestartsPerBurst(t *testing.T) {
	r := debounceRig(ms(1000), WithMaxWait(Static(ms(1500))))

	for at := 0; at <= 3200; at += 400 {
		r.at(ms(at), fmt.Sprint(at))
	}
	r.drain()

	assert.Equal(t, []string{"1200", "2800", "3200"}, r.rec.Args())
	assert.Equal(t, []time.Duration{ms(1500), ms(3100), ms(4200)}, r.rec.Times())
}

func TestDebounce_CeilingDoesNotApplyRejectOnCancel(t *testing.T) {
	r := debounceRig(ms(1000), WithMaxWait(Static(ms(1500))), WithRejectOnCancel(true))

	r.at(0, "a")
	latest := r.at(ms(1200), "b")
	r.drain()

	v, err := resultOf(latest)
	require.NoError(t, err)
	assert.Equal(t, "ran:b", v)
}

func TestDebounce_MainTimerClearsCeiling(t *testing.T) {
	r := debounceRig(ms(100), WithMaxWait(Static(ms(1000))))

	f := r.at(0, "a")
	require.Equal(t, 2, r.clk.Pending())

	r.clk.Advance(ms(100))
	assert.Equal(t, future.Resolved, f.State())
	assert.Equal(t, 0, r.clk.Pending(), "ceiling cleared after a normal debounce")

	r.at(ms(500), "b")
	r.drain()
	assert.Equal(t, []time.Duration{ms(100), ms(600)}, r.rec.Times(), "new burst gets a fresh ceiling")
}

func TestDebounce_RejectOnCancel(t *testing.T) {
	r := debounceRig(ms(500), WithRejectOnCancel(true))

	first := r.at(0, "a")
	second := r.at(ms(100), "b")

	require.Equal(t, future.Canceled, first.State())
	assert.Equal(t, future.Pending, second.State())

	_, err := resultOf(first)
	assert.ErrorIs(t, err, future.ErrCanceled)
	assert.True(t, IsSuperseded(err))
	assert.False(t, IsStopped(err))
}

func TestDebounce_NonPositiveDelayRunsSynchronously(t *testing.T) {
	r := debounceRig(0)

	for _, arg := range []string{"a", "b"} {
		f := r.at(0, arg)
		require.Equal(t, future.Resolved, f.State())
	}
	assert.Equal(t, []string{"a", "b"}, r.rec.Args())
}

func TestDebounce_NonPositiveMaxWaitRunsSynchronously(t *testing.T) {
	r := debounceRig(ms(500), WithMaxWait(Static(time.Duration(0))))

	f := r.at(0, "a")
	require.Equal(t, future.Resolved, f.State())
	assert.Equal(t, 0, r.clk.Pending())
}

func TestDebounce_ImmediateCallClearsPendingWork(t *testing.T) {
	clk := clock.NewManual(epoch)
	delay := NewLive(ms(500))
	var runs []string
	d := NewDebounce[string](delay, WithClock(clk), WithMaxWait(Static(ms(1000))), WithLogger(quietLogger()))
	call := Wrap[string, string](d, func(_ context.Context, arg string) (string, error) {
		runs = append(runs, arg)
		return arg, nil
	})

	deferred := call(context.Background(), "a")
	require.Equal(t, 2, clk.Pending())

	delay.Set(0)
	now := call(context.Background(), "b")

	assert.Equal(t, future.Resolved, deferred.State(), "deferred call superseded")
	v, _ := now.Result()
	assert.Equal(t, "b", v)
	assert.Equal(t, 0, clk.Pending(), "ceiling cleared by immediate execution")

	clk.RunUntilIdle(0)
	assert.Equal(t, []string{"b"}, runs)
}

func TestDebounce_LiveMaxWait(t *testing.T) {
	maxWait := NewLive(ms(300))
	r := debounceRig(ms(200), WithMaxWait(maxWait))

	r.at(0, "a")
	r.at(ms(150), "b")
	r.at(ms(299), "c")
	r.drain()
	assert.Equal(t, []time.Duration{ms(300)}, r.rec.Times())

	maxWait.Set(ms(10_000))
	r.at(ms(1000), "d")
	r.at(ms(1150), "e")
	r.drain()
	assert.Equal(t, []time.Duration{ms(300), ms(1350)}, r.rec.Times())
}

func TestDebounce_ForwardsError(t *testing.T) {
	r := debounceRig(ms(100))
	boom := errors.New("boom")
	r.rec.FailOn("bad", boom)

	f := r.at(0, "bad")
	r.drain()

	assert.Equal(t, future.Rejected, f.State())
	_, err := resultOf(f)
	assert.Same(t, boom, err)
}

func TestDebounce_Stop(t *testing.T) {
	r := debounceRig(ms(100), WithMaxWait(Static(ms(500))), WithRejectOnCancel(true))

	f := r.at(0, "a")
	r.stop()

	assert.Equal(t, 0, r.clk.Pending())
	_, err := resultOf(f)
	assert.True(t, IsStopped(err))

	r.drain()
	assert.Equal(t, 0, r.rec.Count())

	r.at(ms(1000), "b")
	r.drain()
	assert.Equal(t, []string{"b"}, r.rec.Args(), "strategy stays usable after Stop")
}

func TestDebounceFn_RealClock(t *testing.T) {
	var calls []int
	done := make(chan struct{})
	fn := DebounceFn(func(_ context.Context, n int) (int, error) {
		calls = append(calls, n)
		close(done)
		return n * 2, nil
	}, 10*time.Millisecond, WithLogger(quietLogger()))

	fn(context.Background(), 1)
	fn(context.Background(), 2)
	last := fn(context.Background(), 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := last.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, v)
	<-done
	assert.Equal(t, []int{3}, calls)
}

func TestDebounce_FakeClockViaAsync(t *testing.T) {
	fc := testclock.NewFakeClock(epoch)
	var runs atomic.Int32
	d := NewDebounce[int32](Static(100*time.Millisecond),
		WithClock(clock.Async(fc)), WithMaxWait(Static(time.Second)), WithLogger(quietLogger()))
	call := Wrap[int32, int32](d, func(context.Context, int32) (int32, error) {
		return runs.Add(1), nil
	})

	first := call(context.Background(), 0)
	last := call(context.Background(), 0)
	v, err := first.Result()
	require.NoError(t, err)
	assert.Equal(t, int32(0), v, "superseded call resolves with the zero value")

	fc.Step(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err = last.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	// The main timer stops the ceiling from its own callback.
	require.Eventually(t, func() bool { return !fc.HasWaiters() }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}
