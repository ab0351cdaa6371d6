package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/flint/internal/assertion"
	"github.com/roach88/flint/internal/engine"
	"github.com/roach88/flint/internal/harness"
	"github.com/roach88/flint/internal/spec"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReport creates a report with one verdict of each status.
func createTestReport(runID string) *harness.Report {
	return &harness.Report{
		RunID: runID,
		Verdicts: []engine.Verdict{
			{Test: "ok", Status: engine.StatusPassed, Checks: 2, LastTick: 3, ScheduleHash: "h1"},
			{Test: "bad", Status: engine.StatusFailed, Checks: 1, LastTick: 1, Failures: []assertion.Failure{
				{Tick: 1, Pos: spec.Pos{0, 64, 0}, Expected: "minecraft:dirt", Observed: "minecraft:stone"},
			}},
			{Test: "boom", Status: engine.StatusErrored, Error: "running tick 0: gateway freeze: timeout"},
		},
		Passed:  1,
		Failed:  1,
		Errored: 1,
	}
}
