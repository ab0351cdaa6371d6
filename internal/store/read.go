package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/flint/internal/engine"
	"github.com/roach88/flint/internal/trace"
)

// ErrRunNotFound is returned when a run ID has no stored report.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one row of the run history.
type RunSummary struct {
	ID      string `json:"id"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Errored int    `json:"errored"`
}

// Runs returns every stored run, oldest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, passed, failed, errored
		FROM runs
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Passed, &r.Failed, &r.Errored); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the ID of the most recently stored run.
func (s *Store) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM runs ORDER BY position DESC LIMIT 1
	`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return id, nil
}

// Verdicts returns the verdicts of a run in execution order.
func (s *Store) Verdicts(ctx context.Context, runID string) ([]engine.Verdict, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT test, status, checks, last_tick, schedule_hash, error, failures
		FROM verdicts
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	verdicts := []engine.Verdict{}
	for rows.Next() {
		var (
			v        engine.Verdict
			status   string
			failures string
		)
		if err := rows.Scan(&v.Test, &status, &v.Checks, &v.LastTick, &v.ScheduleHash, &v.Error, &failures); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		v.Status = engine.Status(status)
		if v.Failures, err = unmarshalFailures(failures); err != nil {
			return nil, fmt.Errorf("verdict %q: %w", v.Test, err)
		}
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdicts: %w", err)
	}
	return verdicts, nil
}

// Events returns the trace of a run ordered by seq. A non-empty test
// narrows it to that test's events.
func (s *Store) Events(ctx context.Context, runID, test string) ([]trace.Event, error) {
	query := `
		SELECT run_id, seq, test, tick, world_tick, kind, detail, ok, error
		FROM events
		WHERE run_id = ?`
	args := []any{runID}
	if test != "" {
		query += ` AND test = ?`
		args = append(args, test)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		var (
			ev   trace.Event
			kind string
			ok   int
		)
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Test, &ev.Tick, &ev.WorldTick, &kind, &ev.Detail, &ok, &ev.Error); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = trace.Kind(kind)
		ev.OK = ok != 0
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
