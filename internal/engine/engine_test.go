package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flint/internal/assertion"
	"github.com/roach88/flint/internal/compiler"
	"github.com/roach88/flint/internal/gateway"
	"github.com/roach88/flint/internal/spec"
	"github.com/roach88/flint/internal/testutil"
	"github.com/roach88/flint/internal/trace"
)

func compile(t *testing.T, s *spec.TestSpec) *compiler.Schedule {
	t.Helper()
	sched, err := compiler.Compile(s)
	require.NoError(t, err)
	return sched
}

func placement(expect string) *spec.TestSpec {
	return &spec.TestSpec{
		Name: "basic_placement",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(0), Action: spec.Place{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:stone"}},
			{At: spec.Tick(1), Action: spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{0, 64, 0}, Is: expect}}}},
		},
	}
}

func withRegion(s *spec.TestSpec, r spec.Region) *spec.TestSpec {
	s.Setup = &spec.Setup{Cleanup: spec.Cleanup{Region: r}}
	return s
}

func TestRunBasicPlacementPasses(t *testing.T) {
	gw := testutil.NewRecordingGateway(gateway.NewWorld())

	v := New(gw).Run(context.Background(), compile(t, placement("minecraft:stone")))

	assert.Equal(t, StatusPassed, v.Status)
	assert.True(t, v.Passed())
	assert.Empty(t, v.Failures)
	assert.NoError(t, v.Err)
	assert.Equal(t, 1, v.Checks)
	assert.Equal(t, 1, v.LastTick)
	assert.Equal(t, []string{
		"freeze",
		"set_block [0, 64, 0] minecraft:stone",
		"sync",
		"step 1",
		"sync",
		"query [0, 64, 0]",
		"unfreeze",
	}, gw.Calls())
}

func TestRunBareBlockNamesMatch(t *testing.T) {
	s := placement("stone")
	s.Timeline[0].Action = spec.Place{Pos: spec.Pos{0, 64, 0}, Block: "stone"}

	v := New(gateway.NewWorld()).Run(context.Background(), compile(t, s))
	assert.Equal(t, StatusPassed, v.Status, "%v", v.Failures)
}

func TestRunFailedAssertion(t *testing.T) {
	v := New(gateway.NewWorld()).Run(context.Background(), compile(t, placement("minecraft:dirt")))

	assert.Equal(t, StatusFailed, v.Status)
	require.Len(t, v.Failures, 1)
	assert.Equal(t, assertion.Failure{
		Tick:     1,
		Pos:      spec.Pos{0, 64, 0},
		Expected: "minecraft:dirt",
		Observed: "minecraft:stone",
	}, v.Failures[0])
	assert.NoError(t, v.Err)
}

func TestRunZeroAssertionsPasses(t *testing.T) {
	s := &spec.TestSpec{
		Name:     "just_place",
		Timeline: []spec.TimelineEvent{{At: spec.Tick(3), Action: spec.Remove{Pos: spec.Pos{0, 64, 0}}}},
	}
	v := New(gateway.NewWorld()).Run(context.Background(), compile(t, s))
	assert.Equal(t, StatusPassed, v.Status)
	assert.Equal(t, 0, v.Checks)
}

func TestRunCleansRegionBeforeAndAfter(t *testing.T) {
	ctx := context.Background()
	region := spec.Region{{0, 64, 0}, {2, 66, 2}}
	w := gateway.NewWorld()
	require.NoError(t, w.FillRegion(ctx, region, "minecraft:glass"))
	require.NoError(t, w.SetBlock(ctx, spec.Pos{5, 64, 5}, "minecraft:gold_block"))

	s := withRegion(&spec.TestSpec{
		Name: "isolated",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(0), Action: spec.Assert{Checks: []spec.BlockCheck{
				{Pos: spec.Pos{0, 64, 0}, Is: spec.Air},
				{Pos: spec.Pos{2, 66, 2}, Is: spec.Air},
			}}},
			{At: spec.Tick(1), Action: spec.Fill{Region: region, With: "minecraft:stone"}},
			{At: spec.Tick(2), Action: spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{1, 65, 1}, Is: "minecraft:stone"}}}},
		},
	}, region)

	v := New(w).Run(ctx, compile(t, s))
	require.Equal(t, StatusPassed, v.Status, "%v", v.Failures)

	region.Each(func(p spec.Pos) {
		assert.Equal(t, spec.Air, w.Block(p), "position %s after teardown", p)
	})
	assert.Equal(t, "minecraft:gold_block", w.Block(spec.Pos{5, 64, 5}), "outside the region is untouched")
	assert.False(t, w.Frozen(), "freeze released")
}

func TestRunEvaluatesAfterMutationsOfSameTick(t *testing.T) {
	gw := testutil.NewRecordingGateway(gateway.NewWorld())
	s := &spec.TestSpec{
		Name: "same_tick",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(0), Action: spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{0, 64, 0}, Is: "minecraft:stone"}}}},
			{At: spec.Tick(0), Action: spec.Place{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:stone"}},
		},
	}

	v := New(gw).Run(context.Background(), compile(t, s))
	assert.Equal(t, StatusPassed, v.Status)
	assert.Equal(t, []string{
		"freeze",
		"set_block [0, 64, 0] minecraft:stone",
		"sync",
		"query [0, 64, 0]",
		"unfreeze",
	}, gw.Calls())
}

func TestRunStepsOverEmptyTicks(t *testing.T) {
	gw := testutil.NewRecordingGateway(gateway.NewWorld(gateway.WithStartTick(1000)))
	s := &spec.TestSpec{
		Name: "sparse",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(2), Action: spec.Place{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:stone"}},
			{At: spec.Tick(7), Action: spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{0, 64, 0}, Is: "minecraft:stone"}}}},
		},
	}

	v := New(gw).Run(context.Background(), compile(t, s))
	assert.Equal(t, StatusPassed, v.Status)
	assert.Equal(t, 7, gw.Count("step"), "one step request per tick, none after the last")
	assert.Equal(t, 2, gw.Count("sync"), "empty ticks do no work")
	assert.Equal(t, 7, v.LastTick)
}

func TestRunAssertStateAcrossTicks(t *testing.T) {
	w := gateway.NewWorld(gateway.WithRules(gateway.Toggle("minecraft:lever", "powered", 2)))
	s := &spec.TestSpec{
		Name: "lever_clock",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(0), Action: spec.Place{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:lever[powered=false]"}},
			{At: spec.Ticks(1, 2, 3, 4), Action: spec.AssertState{
				Pos:    spec.Pos{0, 64, 0},
				State:  "powered",
				Values: []string{"false", "true", "true", "false"},
			}},
		},
	}

	v := New(w).Run(context.Background(), compile(t, s))
	assert.Equal(t, StatusPassed, v.Status, "%v", v.Failures)
	assert.Equal(t, 4, v.Checks)
}

func TestRunCollectsAllFailures(t *testing.T) {
	s := &spec.TestSpec{
		Name: "many",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(0), Action: spec.Place{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:stone"}},
			{At: spec.Ticks(1, 2), Action: spec.Assert{Checks: []spec.BlockCheck{
				{Pos: spec.Pos{0, 64, 0}, Is: "minecraft:dirt"},
				{Pos: spec.Pos{0, 65, 0}, Is: "minecraft:dirt"},
			}}},
			{At: spec.Tick(2), Action: spec.AssertState{Pos: spec.Pos{0, 64, 0}, State: "powered", Values: []string{"true"}}},
		},
	}

	v := New(gateway.NewWorld()).Run(context.Background(), compile(t, s))
	assert.Equal(t, StatusFailed, v.Status)
	require.Len(t, v.Failures, 5)
	assert.Equal(t, 5, v.Checks)
	assert.Equal(t, []int{1, 1, 2, 2, 2}, []int{v.Failures[0].Tick, v.Failures[1].Tick, v.Failures[2].Tick, v.Failures[3].Tick, v.Failures[4].Tick})
	assert.True(t, v.Failures[4].Absent)
}

func TestRunGatewayErrorStillTearsDown(t *testing.T) {
	region := spec.Region{{0, 64, 0}, {1, 64, 1}}
	w := gateway.NewWorld()
	gw := testutil.NewRecordingGateway(w)
	gw.Inject(testutil.Fault{Op: "set_block", Nth: 2, Err: &gateway.GatewayError{Op: "set_block", Kind: gateway.KindDisconnected, Err: errors.New("eof")}})

	s := withRegion(&spec.TestSpec{
		Name: "broken",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(0), Action: spec.Place{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:stone"}},
			{At: spec.Tick(1), Action: spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{0, 64, 0}, Is: "minecraft:dirt"}}}},
			{At: spec.Tick(2), Action: spec.Place{Pos: spec.Pos{1, 64, 1}, Block: "minecraft:stone"}},
			{At: spec.Tick(3), Action: spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{1, 64, 1}, Is: "minecraft:stone"}}}},
		},
	}, region)

	v := New(gw).Run(context.Background(), compile(t, s))

	assert.Equal(t, StatusErrored, v.Status)
	require.Error(t, v.Err)
	assert.True(t, gateway.IsKind(v.Err, gateway.KindDisconnected))
	assert.Contains(t, v.Error, "running tick 2")
	assert.Len(t, v.Failures, 1, "failures before the error are kept")
	assert.Equal(t, 2, gw.Count("step"), "no step after the error")

	assert.Equal(t, 1, gw.Count("unfreeze"))
	assert.Equal(t, 2, gw.Count("fill"), "cleanup before and after")
	assert.Equal(t, spec.Air, w.Block(spec.Pos{0, 64, 0}))
}

func TestRunTimeoutIsFatal(t *testing.T) {
	gw := testutil.NewRecordingGateway(gateway.NewWorld())
	gw.Inject(testutil.Fault{Op: "step", Nth: 1, Hang: true})

	v := New(gw, WithOpTimeout(20*time.Millisecond)).Run(context.Background(), compile(t, placement("minecraft:stone")))

	assert.Equal(t, StatusErrored, v.Status)
	assert.True(t, gateway.IsKind(v.Err, gateway.KindTimeout))
	assert.Equal(t, 0, gw.Count("query"))
	assert.Equal(t, 1, gw.Count("unfreeze"))
}

func TestRunDetectsTickDesync(t *testing.T) {
	gw := testutil.NewRecordingGateway(gateway.NewWorld())
	gw.SkewSteps(1)

	v := New(gw).Run(context.Background(), compile(t, placement("minecraft:stone")))

	assert.Equal(t, StatusErrored, v.Status)
	assert.True(t, gateway.IsKind(v.Err, gateway.KindDesync))
	assert.Contains(t, v.Error, "expected 1")
}

func TestRunTeardownFailureErrorsPassingRun(t *testing.T) {
	gw := testutil.NewRecordingGateway(gateway.NewWorld())
	gw.Inject(testutil.Fault{Op: "unfreeze", Nth: 1, Err: &gateway.GatewayError{Op: "unfreeze", Kind: gateway.KindRejected, Err: errors.New("nope")}})

	v := New(gw).Run(context.Background(), compile(t, placement("minecraft:stone")))

	assert.Equal(t, StatusErrored, v.Status)
	assert.True(t, IsTeardownError(v.Err))
	assert.Empty(t, v.Failures)
}

func TestRunTeardownIgnoresCallerCancellation(t *testing.T) {
	region := spec.Region{{0, 64, 0}, {1, 64, 1}}
	ctx, cancel := context.WithCancel(context.Background())
	gw := testutil.NewRecordingGateway(gateway.NewWorld())
	gw.Inject(testutil.Fault{Op: "step", Nth: 1, Hang: true})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	s := withRegion(placement("minecraft:stone"), region)
	v := New(gw).Run(ctx, compile(t, s))

	assert.Equal(t, StatusErrored, v.Status)
	assert.True(t, gateway.IsKind(v.Err, gateway.KindCanceled))
	assert.Equal(t, 1, gw.Count("unfreeze"))
	assert.Equal(t, 2, gw.Count("fill"))
}

func TestRunTraceIsDeterministic(t *testing.T) {
	runOnce := func() (Verdict, []trace.Event) {
		rec := trace.NewMemory()
		e := New(gateway.NewWorld(),
			WithClock(testutil.NewDeterministicClock()),
			WithRecorder(rec),
			WithRunID("run-1"))
		s := withRegion(placement("minecraft:dirt"), spec.Region{{0, 64, 0}, {0, 64, 0}})
		return e.Run(context.Background(), compile(t, s)), rec.Events()
	}

	v1, ev1 := runOnce()
	v2, ev2 := runOnce()
	assert.Equal(t, v1, v2)
	assert.Equal(t, ev1, ev2)

	assert.Equal(t, []trace.Kind{
		trace.KindCleanup,
		trace.KindFreeze,
		trace.KindSetBlock,
		trace.KindSync,
		trace.KindStep,
		trace.KindSync,
		trace.KindCheck,
		trace.KindUnfreeze,
		trace.KindCleanup,
		trace.KindVerdict,
	}, trace.Kinds(ev1))

	for i, ev := range ev1 {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, "basic_placement", ev.Test)
	}
	check := ev1[6]
	assert.False(t, check.OK)
	assert.Equal(t, "block [0, 64, 0] is minecraft:dirt", check.Detail)
	assert.Equal(t, int64(1), ev1[4].WorldTick)
	assert.Equal(t, string(StatusFailed), ev1[9].Detail)
}

type failingRecorder struct{}

func (failingRecorder) Record(trace.Event) error { return errors.New("disk full") }

func TestRunSurvivesRecorderFailure(t *testing.T) {
	v := New(gateway.NewWorld(), WithRecorder(failingRecorder{})).Run(context.Background(), compile(t, placement("minecraft:stone")))
	assert.Equal(t, StatusPassed, v.Status)
}
