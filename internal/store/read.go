package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/filtergate/internal/trace"
)

const runColumns = `
	SELECT r.id, r.scenario, r.filter, r.pass, r.errors,
	       (SELECT COUNT(*) FROM events e WHERE e.run_id = r.id)
	FROM runs r`

// ReadRun returns a run by ID, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, runColumns+` WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRuns returns stored runs ordered by ID. A non-empty scenario limits
// the list to runs of that scenario.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	query := runColumns + ` ORDER BY r.id COLLATE BINARY ASC`
	var args []any
	if scenario != "" {
		query = runColumns + ` WHERE r.scenario = ? ORDER BY r.id COLLATE BINARY ASC`
		args = append(args, scenario)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns a run's events ordered by seq.
// Returns an empty slice (not nil) if none are stored.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]trace.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, at_ms, kind, call, arg, value, error
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		var e trace.Event
		var kind string
		if err := rows.Scan(&e.Seq, &e.AtMS, &kind, &e.Call, &e.Arg, &e.Value, &e.Error); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = trace.Kind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadTrace reassembles a stored run as a trace.
func (s *Store) ReadTrace(ctx context.Context, runID string) (*trace.Trace, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &trace.Trace{
		Name:   run.Scenario,
		RunID:  run.ID,
		Filter: run.Filter,
		Events: events,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var pass int
	var errsJSON string
	if err := sc.Scan(&run.ID, &run.Scenario, &run.Filter, &pass, &errsJSON, &run.Events); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Pass = pass == 1

	if err := json.Unmarshal([]byte(errsJSON), &run.Errors); err != nil {
		return Run{}, fmt.Errorf("unmarshal run errors: %w", err)
	}
	if len(run.Errors) == 0 {
		run.Errors = nil
	}
	return run, nil
}
