package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/flint/internal/canon"
	"github.com/roach88/flint/internal/spec"
)

// Compile validates s and lowers its timeline into a Schedule.
//
// The first structural problem found, in timeline order, is returned as a
// *CompileError.
func Compile(s *spec.TestSpec) (*Schedule, error) {
	if s == nil {
		return nil, &CompileError{Code: ErrCodeInvalidSpec, Event: -1, Message: "nil test spec"}
	}
	if errs := s.Validate(); len(errs) > 0 {
		return nil, &CompileError{
			Code:    ErrCodeInvalidSpec,
			Test:    s.Name,
			Event:   -1,
			Message: errs.Error(),
			Err:     errs,
		}
	}
	if len(s.Timeline) == 0 {
		return nil, &CompileError{
			Code:    ErrCodeEmptyTimeline,
			Test:    s.Name,
			Event:   -1,
			Message: "timeline has no events",
		}
	}

	steps := make(map[int]*Step)
	for i, ev := range s.Timeline {
		if err := checkEvent(s.Name, i, ev); err != nil {
			return nil, err
		}
		for j, tick := range ev.At.Ticks {
			st, ok := steps[tick]
			if !ok {
				st = &Step{Tick: tick}
				steps[tick] = st
			}
			lower(st, ev.Action, j)
		}
	}

	ticks := make([]int, 0, len(steps))
	for t := range steps {
		ticks = append(ticks, t)
	}
	sort.Ints(ticks)

	sched := &Schedule{Test: s.Name, Steps: make([]Step, 0, len(ticks))}
	if r, ok := s.CleanupRegion(); ok {
		sched.Cleanup = &r
	}
	for _, t := range ticks {
		sched.Steps = append(sched.Steps, *steps[t])
	}

	hash, err := canon.Hash(canon.DomainSchedule, sched)
	if err != nil {
		return nil, fmt.Errorf("hash schedule %q: %w", s.Name, err)
	}
	sched.Hash = hash
	return sched, nil
}

func checkEvent(test string, i int, ev spec.TimelineEvent) error {
	ticks := ev.At.Ticks
	if len(ticks) == 0 {
		return &CompileError{
			Code:    ErrCodeEmptyTickList,
			Test:    test,
			Event:   i,
			Message: "at lists no ticks",
		}
	}
	for _, t := range ticks {
		if t < 0 {
			return &CompileError{
				Code:    ErrCodeNegativeTick,
				Test:    test,
				Event:   i,
				Message: fmt.Sprintf("tick %d is negative", t),
			}
		}
	}
	if as, ok := ev.Action.(spec.AssertState); ok && len(as.Values) != len(ticks) {
		return &CompileError{
			Code:    ErrCodeMismatchedArrayLengths,
			Test:    test,
			Event:   i,
			Message: fmt.Sprintf("at has %d tick(s) but values has %d", len(ticks), len(as.Values)),
		}
	}
	return nil
}

// lower appends the operations for one occurrence of an action. idx is the
// position of the current tick within the event's `at` list.
func lower(st *Step, a spec.Action, idx int) {
	switch act := a.(type) {
	case spec.Place:
		st.Mutations = append(st.Mutations, SetBlock{Pos: act.Pos, Block: act.Block})
	case spec.PlaceEach:
		for _, b := range act.Blocks {
			st.Mutations = append(st.Mutations, SetBlock{Pos: b.Pos, Block: b.Block})
		}
	case spec.Fill:
		st.Mutations = append(st.Mutations, FillRegion{Region: act.Region.Normalize(), Block: act.With})
	case spec.Remove:
		st.Mutations = append(st.Mutations, SetBlock{Pos: act.Pos, Block: spec.Air})
	case spec.Assert:
		for _, c := range act.Checks {
			st.Expectations = append(st.Expectations, BlockIs{Pos: c.Pos, Block: spec.QualifyBlockID(strings.TrimSpace(c.Is))})
		}
	case spec.AssertState:
		st.Expectations = append(st.Expectations, StateIs{Pos: act.Pos, Property: act.State, Value: act.Values[idx]})
	}
}
