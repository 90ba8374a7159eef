package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filtergate/internal/trace"
)

// createTestStore opens a fresh file-backed store for one test.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTrace(runID string) *trace.Trace {
	return &trace.Trace{
		Name:   "burst",
		RunID:  runID,
		Filter: "throttle(ms=1000, trailing=true)",
		Events: []trace.Event{
			{Seq: 1, AtMS: 500, Kind: trace.KindCall, Call: 1, Arg: "a"},
			{Seq: 2, AtMS: 500, Kind: trace.KindExec, Call: 1, Arg: "a"},
			{Seq: 3, AtMS: 500, Kind: trace.KindResolve, Call: 1, Value: "a"},
			{Seq: 4, AtMS: 600, Kind: trace.KindCall, Call: 2, Arg: "b"},
			{Seq: 5, AtMS: 1500, Kind: trace.KindReject, Call: 2, Error: "boom"},
		},
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.SaveTrace(context.Background(), sampleTrace("run-1"), true, nil))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	run, err := s2.ReadRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 5, run.Events)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.ListRuns(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NotNil(t, runs)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestSaveAndReadTrace(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tr := sampleTrace("run-1")

	require.NoError(t, s.SaveTrace(ctx, tr, false, []string{"exec_count mismatch"}))

	got, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, tr, got)

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, Run{
		ID:       "run-1",
		Scenario: "burst",
		Filter:   "throttle(ms=1000, trailing=true)",
		Pass:     false,
		Errors:   []string{"exec_count mismatch"},
		Events:   5,
	}, run)
}

func TestWriteRun_ReplacesExisting(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, Run{ID: "run-1", Scenario: "first", Filter: "f", Pass: true}))
	require.NoError(t, s.WriteRun(ctx, Run{ID: "run-1", Scenario: "second", Filter: "g", Errors: []string{"boom"}}))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "second", run.Scenario)
	assert.Equal(t, "g", run.Filter)
	assert.False(t, run.Pass)
	assert.Equal(t, []string{"boom"}, run.Errors)
}

func TestSaveTrace_RerunReplacesRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTrace(ctx, sampleTrace("run-1"), true, nil))

	rerun := sampleTrace("run-1")
	rerun.Events = rerun.Events[:2]
	require.NoError(t, s.SaveTrace(ctx, rerun, false, []string{"exec_count: expected 2"}))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, run.Pass)
	assert.Equal(t, []string{"exec_count: expected 2"}, run.Errors)
	assert.Equal(t, 2, run.Events)

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestWriteEvents_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tr := sampleTrace("run-1")

	require.NoError(t, s.SaveTrace(ctx, tr, true, nil))
	require.NoError(t, s.WriteEvents(ctx, "run-1", tr.Events))

	events, err := s.ReadEvents(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestWriteEvents_RequiresRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteEvents(context.Background(), "missing", sampleTrace("missing").Events)
	assert.Error(t, err)

	events, err := s.ReadEvents(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestWriteEvents_RejectsUnknownKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, Run{ID: "run-1", Scenario: "s", Filter: "f"}))

	err := s.WriteEvents(ctx, "run-1", []trace.Event{{Seq: 1, Kind: "bogus", Call: 1}})
	assert.Error(t, err)
}

func TestReadEvents_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, Run{ID: "run-1", Scenario: "s", Filter: "f"}))

	require.NoError(t, s.WriteEvents(ctx, "run-1", []trace.Event{
		{Seq: 3, AtMS: 0, Kind: trace.KindCall, Call: 3},
		{Seq: 1, AtMS: 9, Kind: trace.KindCall, Call: 1},
		{Seq: 2, AtMS: 5, Kind: trace.KindCall, Call: 2},
	}))

	events, err := s.ReadEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Seq)
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ReadTrace(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, r := range []Run{
		{ID: "run-b", Scenario: "burst", Filter: "f", Pass: true},
		{ID: "run-a", Scenario: "burst", Filter: "f"},
		{ID: "run-c", Scenario: "quiet", Filter: "g", Pass: true},
	} {
		require.NoError(t, s.WriteRun(ctx, r))
	}

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
	assert.Equal(t, "run-c", runs[2].ID)

	runs, err = s.ListRuns(ctx, "quiet")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-c", runs[0].ID)
}
