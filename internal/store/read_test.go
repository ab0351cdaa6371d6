package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flint/internal/engine"
	"github.com/roach88/flint/internal/gateway"
	"github.com/roach88/flint/internal/harness"
	"github.com/roach88/flint/internal/spec"
	"github.com/roach88/flint/internal/testutil"
	"github.com/roach88/flint/internal/trace"
)

func TestRuns_OldestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)

	// IDs sort opposite to insertion order
	require.NoError(t, s.WriteReport(ctx, createTestReport("zz")))
	require.NoError(t, s.WriteReport(ctx, createTestReport("aa")))

	runs, err = s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "zz", runs[0].ID)
	assert.Equal(t, RunSummary{ID: "aa", Passed: 1, Failed: 1, Errored: 1}, runs[1])

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "aa", latest)
}

func TestVerdicts_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := createTestReport("r1")
	require.NoError(t, s.WriteReport(ctx, want))

	got, err := s.Verdicts(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, want.Verdicts, got)
}

func TestVerdicts_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Verdicts(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestEvents_FromLiveRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mem := trace.NewMemory()

	runner := harness.NewRunner(gateway.NewWorld(),
		harness.WithRunIDs(testutil.FixedRunID("live")),
		harness.WithRecorder(trace.Multi{mem, s}),
	)
	report, err := runner.RunTests(ctx, []*spec.TestSpec{
		{
			Name:  "first",
			Setup: &spec.Setup{Cleanup: spec.Cleanup{Region: spec.Region{{0, 64, 0}, {2, 66, 2}}}},
			Timeline: []spec.TimelineEvent{
				{At: spec.Tick(0), Action: spec.Place{Pos: spec.Pos{1, 64, 1}, Block: "minecraft:stone"}},
				{At: spec.Tick(2), Action: spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{1, 64, 1}, Is: "minecraft:stone"}}}},
			},
		},
		{
			Name: "second",
			Timeline: []spec.TimelineEvent{
				{At: spec.Tick(1), Action: spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{1, 64, 1}, Is: "minecraft:air"}}}},
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.WriteReport(ctx, report))

	all, err := s.Events(ctx, "live", "")
	require.NoError(t, err)
	assert.Equal(t, mem.Events(), all)

	second, err := s.Events(ctx, "live", "second")
	require.NoError(t, err)
	assert.Equal(t, trace.ForTest(mem.Events(), "second"), second)
	assert.Equal(t, trace.KindVerdict, second[len(second)-1].Kind)

	verdicts, err := s.Verdicts(ctx, "live")
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.Equal(t, engine.StatusPassed, verdicts[0].Status)
	assert.Equal(t, engine.StatusPassed, verdicts[1].Status, "cleanup cleared the block")
}
