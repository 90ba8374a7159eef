// Package store persists simulator runs and their traces in SQLite.
//
// Two tables:
//   - runs: one row per scenario run (scenario name, filter, pass/fail)
//   - events: the run's trace, keyed by (run_id, seq)
//
// Writes are idempotent: re-writing a run or an event with the same key is
// a no-op. Reads order events by seq, never by time, so a stored trace
// reads back exactly as it was recorded.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events must belong to a stored run
package store
