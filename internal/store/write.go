package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/filtergate/internal/trace"
)

// Run is a stored scenario run.
type Run struct {
	ID       string   `json:"id"`
	Scenario string   `json:"scenario"`
	Filter   string   `json:"filter"`
	Pass     bool     `json:"pass"`
	Errors   []string `json:"errors,omitempty"`

	// Events is filled in by reads: the number of stored trace events.
	Events int `json:"events"`
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// WriteRun inserts a run record, replacing the record of an existing run
// with the same ID. Stored events are not touched; see SaveTrace.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	return upsertRun(ctx, s.db, run)
}

func upsertRun(ctx context.Context, db execer, run Run) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, filter, pass, errors)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scenario = excluded.scenario,
			filter   = excluded.filter,
			pass     = excluded.pass,
			errors   = excluded.errors
	`, run.ID, run.Scenario, run.Filter, boolToInt(run.Pass), string(errsJSON))
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteEvents inserts trace events for a run in a single transaction.
// The run must already exist. Events already stored under the same seq
// are left untouched.
func (s *Store) WriteEvents(ctx context.Context, runID string, events []trace.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	defer tx.Rollback()

	if err := insertEvents(ctx, tx, runID, events); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

func insertEvents(ctx context.Context, db execer, runID string, events []trace.Event) error {
	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO events (run_id, seq, at_ms, kind, call, arg, value, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, runID, e.Seq, e.AtMS, string(e.Kind), e.Call, e.Arg, e.Value, e.Error); err != nil {
			return fmt.Errorf("write event seq=%d: %w", e.Seq, err)
		}
	}
	return nil
}

// SaveTrace writes a run and all of its events in one transaction. A run
// already stored under the same ID is replaced, events included.
func (s *Store) SaveTrace(ctx context.Context, tr *trace.Trace, pass bool, errs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	defer tx.Rollback()

	run := Run{
		ID:       tr.RunID,
		Scenario: tr.Name,
		Filter:   tr.Filter,
		Pass:     pass,
		Errors:   errs,
	}
	if err := upsertRun(ctx, tx, run); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE run_id = ?`, tr.RunID); err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	if err := insertEvents(ctx, tx, tr.RunID, tr.Events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
