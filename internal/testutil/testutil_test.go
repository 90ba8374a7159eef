package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filtergate/internal/clock"
)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("run-123")

	assert.Equal(t, "run-123", gen.Generate())
	assert.Equal(t, "run-123", gen.Generate())
}

func TestFixedIDGenerator_EmptyDefault(t *testing.T) {
	assert.Equal(t, "test-run-default", NewFixedIDGenerator("").Generate())
}

func TestFixedIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedIDGenerator("thread-safe")

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				assert.Equal(t, "thread-safe", gen.Generate())
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestRecorder_RecordsOffsets(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)
	rec := NewRecorder(clk, start)

	v, err := rec.Func(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "ran:a", v)

	clk.Advance(250 * time.Millisecond)
	_, _ = rec.Func(context.Background(), "b")

	assert.Equal(t, 2, rec.Count())
	assert.Equal(t, []string{"a", "b"}, rec.Args())
	assert.Equal(t, []time.Duration{0, 250 * time.Millisecond}, rec.Times())
	assert.Equal(t, Execution{Arg: "b", At: 250 * time.Millisecond}, rec.Executions()[1])
}

func TestRecorder_FailOn(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := NewRecorder(clock.NewManual(start), start)
	boom := errors.New("boom")
	rec.FailOn("x", boom)

	_, err := rec.Func(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, rec.Count(), "failed runs are still recorded")
}
