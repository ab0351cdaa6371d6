package store

import (
	"context"
	"fmt"

	"github.com/roach88/flint/internal/harness"
	"github.com/roach88/flint/internal/trace"
)

// Record writes one trace event. It makes Store a trace.Recorder, so the
// engine can stream events into the database while a run is in progress.
func (s *Store) Record(ev trace.Event) error {
	return s.WriteEvent(context.Background(), ev)
}

// WriteEvent inserts a trace event. Uses ON CONFLICT DO NOTHING on
// (run_id, seq) for idempotency.
func (s *Store) WriteEvent(ctx context.Context, ev trace.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(run_id, seq, test, tick, world_tick, kind, detail, ok, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		ev.RunID,
		ev.Seq,
		ev.Test,
		ev.Tick,
		ev.WorldTick,
		string(ev.Kind),
		ev.Detail,
		boolToInt(ev.OK),
		ev.Error,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// WriteReport stores a finished run and its verdicts in one transaction.
// Writing the same report twice is a no-op.
func (s *Store) WriteReport(ctx context.Context, report *harness.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write report: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// The WHERE clause keeps SQLite from parsing ON CONFLICT as part of
	// the SELECT.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, position, passed, failed, errored)
		SELECT ?, COALESCE(MAX(position), 0) + 1, ?, ?, ? FROM runs WHERE true
		ON CONFLICT(id) DO NOTHING
	`, report.RunID, report.Passed, report.Failed, report.Errored)
	if err != nil {
		return fmt.Errorf("write report: insert run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write report: rows affected: %w", err)
	}
	if rows == 0 {
		return nil
	}

	for i, v := range report.Verdicts {
		failures, err := marshalFailures(v.Failures)
		if err != nil {
			return fmt.Errorf("write report: verdict %q: %w", v.Test, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO verdicts
			(run_id, position, test, status, checks, last_tick, schedule_hash, error, failures)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.RunID,
			i,
			v.Test,
			string(v.Status),
			v.Checks,
			v.LastTick,
			v.ScheduleHash,
			v.Error,
			failures,
		)
		if err != nil {
			return fmt.Errorf("write report: verdict %q: %w", v.Test, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write report: commit: %w", err)
	}
	return nil
}
