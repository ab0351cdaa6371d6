package compiler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flint/internal/spec"
)

func basicSpec() *spec.TestSpec {
	return &spec.TestSpec{
		Name: "basic_placement",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(0), Action: spec.Place{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:stone"}},
			{At: spec.Tick(1), Action: spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{0, 64, 0}, Is: "minecraft:stone"}}}},
		},
	}
}

func TestCompileBasicPlacement(t *testing.T) {
	sched, err := Compile(basicSpec())
	require.NoError(t, err)

	assert.Equal(t, "basic_placement", sched.Test)
	assert.Nil(t, sched.Cleanup)
	require.Len(t, sched.Steps, 2)

	assert.Equal(t, 0, sched.Steps[0].Tick)
	assert.Equal(t, []Mutation{SetBlock{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:stone"}}, sched.Steps[0].Mutations)
	assert.Empty(t, sched.Steps[0].Expectations)

	assert.Equal(t, 1, sched.Steps[1].Tick)
	assert.Empty(t, sched.Steps[1].Mutations)
	assert.Equal(t, []Expectation{BlockIs{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:stone"}}, sched.Steps[1].Expectations)

	assert.Equal(t, 1, sched.LastTick())
	assert.Len(t, sched.Hash, 64)
}

func TestCompileExpandsAssertStateArrays(t *testing.T) {
	s := &spec.TestSpec{
		Name: "lever",
		Timeline: []spec.TimelineEvent{{
			At: spec.Ticks(1, 2, 3),
			Action: spec.AssertState{
				Pos:    spec.Pos{0, 65, 0},
				State:  "powered",
				Values: []string{"false", "true", "false"},
			},
		}},
	}

	sched, err := Compile(s)
	require.NoError(t, err)
	require.Len(t, sched.Steps, 3)

	want := []string{"false", "true", "false"}
	for i, st := range sched.Steps {
		assert.Equal(t, i+1, st.Tick)
		require.Len(t, st.Expectations, 1)
		assert.Equal(t, StateIs{Pos: spec.Pos{0, 65, 0}, Property: "powered", Value: want[i]}, st.Expectations[0])
	}
}

func TestCompileMismatchedArrayLengths(t *testing.T) {
	s := &spec.TestSpec{
		Name: "lever",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(0), Action: spec.Place{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:lever"}},
			{At: spec.Ticks(1, 2, 3), Action: spec.AssertState{Pos: spec.Pos{0, 64, 0}, State: "powered", Values: []string{"false", "true"}}},
		},
	}

	_, err := Compile(s)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeMismatchedArrayLengths))

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Event)
	assert.Equal(t, "lever", ce.Test)
	assert.Contains(t, ce.Error(), "timeline[1]")
}

func TestCompileScalarAssertStateTakesOneValue(t *testing.T) {
	s := &spec.TestSpec{
		Name: "lever",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(2), Action: spec.AssertState{Pos: spec.Pos{0, 64, 0}, State: "powered", Values: []string{"true"}}},
		},
	}
	sched, err := Compile(s)
	require.NoError(t, err)
	assert.Equal(t, []Expectation{StateIs{Pos: spec.Pos{0, 64, 0}, Property: "powered", Value: "true"}}, sched.Steps[0].Expectations)

	s.Timeline[0].Action = spec.AssertState{Pos: spec.Pos{0, 64, 0}, State: "powered", Values: []string{"true", "false"}}
	_, err = Compile(s)
	assert.True(t, HasCode(err, ErrCodeMismatchedArrayLengths))
}

func TestCompileEmptyTimeline(t *testing.T) {
	_, err := Compile(&spec.TestSpec{Name: "empty", Timeline: []spec.TimelineEvent{}})
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeEmptyTimeline))
}

func TestCompileNegativeTick(t *testing.T) {
	s := basicSpec()
	s.Timeline[1].At = spec.Ticks(2, -1)

	_, err := Compile(s)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeNegativeTick))
	assert.Contains(t, err.Error(), "tick -1")
}

func TestCompileEmptyTickList(t *testing.T) {
	s := basicSpec()
	s.Timeline[0].At = spec.Ticks()

	_, err := Compile(s)
	assert.True(t, HasCode(err, ErrCodeEmptyTickList))
}

func TestCompileInvalidSpec(t *testing.T) {
	s := basicSpec()
	s.Name = ""

	_, err := Compile(s)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidSpec))

	var verrs spec.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, spec.ErrNameRequired, verrs[0].Code)

	_, err = Compile(nil)
	assert.True(t, HasCode(err, ErrCodeInvalidSpec))
}

func TestCompileOrdersTicksAscending(t *testing.T) {
	s := &spec.TestSpec{
		Name: "out_of_order",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(5), Action: spec.Remove{Pos: spec.Pos{0, 64, 0}}},
			{At: spec.Tick(0), Action: spec.Place{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:stone"}},
			{At: spec.Ticks(3, 1), Action: spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{0, 64, 0}, Is: "minecraft:stone"}}}},
		},
	}

	sched, err := Compile(s)
	require.NoError(t, err)

	var ticks []int
	for _, st := range sched.Steps {
		ticks = append(ticks, st.Tick)
	}
	assert.Equal(t, []int{0, 1, 3, 5}, ticks)
	assert.Equal(t, []Mutation{SetBlock{Pos: spec.Pos{0, 64, 0}, Block: spec.Air}}, sched.Steps[3].Mutations)
}

func TestCompileKeepsDeclarationOrderWithinTick(t *testing.T) {
	s := &spec.TestSpec{
		Name: "same_tick",
		Timeline: []spec.TimelineEvent{
			{At: spec.Tick(0), Action: spec.Assert{Checks: []spec.BlockCheck{
				{Pos: spec.Pos{0, 64, 0}, Is: "minecraft:air"},
				{Pos: spec.Pos{1, 64, 0}, Is: "minecraft:air"},
			}}},
			{At: spec.Tick(0), Action: spec.Fill{Region: spec.Region{{2, 64, 2}, {0, 64, 0}}, With: "minecraft:dirt"}},
			{At: spec.Tick(0), Action: spec.PlaceEach{Blocks: []spec.Placement{
				{Pos: spec.Pos{0, 65, 0}, Block: "minecraft:stone"},
				{Pos: spec.Pos{1, 65, 0}, Block: "minecraft:glass"},
			}}},
		},
	}

	sched, err := Compile(s)
	require.NoError(t, err)
	require.Len(t, sched.Steps, 1)

	st := sched.Steps[0]
	assert.Equal(t, []Mutation{
		FillRegion{Region: spec.Region{{0, 64, 0}, {2, 64, 2}}, Block: "minecraft:dirt"},
		SetBlock{Pos: spec.Pos{0, 65, 0}, Block: "minecraft:stone"},
		SetBlock{Pos: spec.Pos{1, 65, 0}, Block: "minecraft:glass"},
	}, st.Mutations)
	assert.Equal(t, []Expectation{
		BlockIs{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:air"},
		BlockIs{Pos: spec.Pos{1, 64, 0}, Block: "minecraft:air"},
	}, st.Expectations)

	m, e := sched.Counts()
	assert.Equal(t, 3, m)
	assert.Equal(t, 2, e)
}

func TestCompileQualifiesCheckedBlocks(t *testing.T) {
	s := basicSpec()
	s.Timeline[0].Action = spec.Place{Pos: spec.Pos{0, 64, 0}, Block: "stone"}
	s.Timeline[1].Action = spec.Assert{Checks: []spec.BlockCheck{
		{Pos: spec.Pos{0, 64, 0}, Is: "stone"},
		{Pos: spec.Pos{1, 64, 0}, Is: "mod:ore"},
	}}

	sched, err := Compile(s)
	require.NoError(t, err)
	assert.Equal(t, []Expectation{
		BlockIs{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:stone"},
		BlockIs{Pos: spec.Pos{1, 64, 0}, Block: "mod:ore"},
	}, sched.Steps[1].Expectations)
}

func TestCompileRejectsCheckWithProperties(t *testing.T) {
	s := basicSpec()
	s.Timeline[1].Action = spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{0, 64, 0}, Is: "minecraft:lever[powered=true]"}}}

	_, err := Compile(s)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidSpec))
}

func TestCompileNormalizesCleanupRegion(t *testing.T) {
	s := basicSpec()
	s.Setup = &spec.Setup{Cleanup: spec.Cleanup{Region: spec.Region{{3, 70, 3}, {0, 64, 0}}}}

	sched, err := Compile(s)
	require.NoError(t, err)
	require.NotNil(t, sched.Cleanup)
	assert.Equal(t, spec.Region{{0, 64, 0}, {3, 70, 3}}, *sched.Cleanup)
}

func TestCompileHashIsDeterministic(t *testing.T) {
	a, err := Compile(basicSpec())
	require.NoError(t, err)
	b, err := Compile(basicSpec())
	require.NoError(t, err)
	assert.Equal(t, a.Hash, b.Hash)

	changed := basicSpec()
	changed.Timeline[1].Action = spec.Assert{Checks: []spec.BlockCheck{{Pos: spec.Pos{0, 64, 0}, Is: "minecraft:dirt"}}}
	c, err := Compile(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash, c.Hash)
}

func TestScheduleJSONTagsOps(t *testing.T) {
	sched, err := Compile(basicSpec())
	require.NoError(t, err)

	data, err := json.Marshal(sched.Steps)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"tick":0,"mutations":[{"op":"set_block","pos":[0,64,0],"block":"minecraft:stone"}]},
		{"tick":1,"expectations":[{"op":"block_is","pos":[0,64,0],"block":"minecraft:stone"}]}
	]`, string(data))
}

func TestOpStrings(t *testing.T) {
	assert.Equal(t, "set_block [0, 64, 0] minecraft:stone", SetBlock{Pos: spec.Pos{0, 64, 0}, Block: "minecraft:stone"}.String())
	assert.Equal(t, "block [1, 2, 3] powered=true", StateIs{Pos: spec.Pos{1, 2, 3}, Property: "powered", Value: "true"}.String())
}
