// Package assertion compares expected block identities and block-state
// values against what the world reports.
//
// Comparison is exact string equality. A block-state property the
// observed block does not have is a mismatch, never an error. Every
// expectation of a tick is evaluated; one failure does not hide the rest.
package assertion

import (
	"context"
	"fmt"

	"github.com/roach88/flint/internal/compiler"
	"github.com/roach88/flint/internal/gateway"
	"github.com/roach88/flint/internal/spec"
)

// Failure is one expectation that did not hold.
type Failure struct {
	Tick int      `json:"tick"`
	Pos  spec.Pos `json:"pos"`

	// Property is the block-state property checked, empty for a block
	// identity check.
	Property string `json:"property,omitempty"`

	Expected string `json:"expected"`
	Observed string `json:"observed"`

	// Absent is set when the observed block has no such property.
	Absent bool `json:"absent,omitempty"`
}

func (f Failure) String() string {
	observed := f.Observed
	if f.Absent {
		observed = "<absent>"
	}
	if f.Property == "" {
		return fmt.Sprintf("tick %d: block at %s: expected %s, observed %s", f.Tick, f.Pos, f.Expected, observed)
	}
	return fmt.Sprintf("tick %d: %s at %s: expected %s, observed %s", f.Tick, f.Property, f.Pos, f.Expected, observed)
}

// Observation is what the world reported for one expectation.
type Observation struct {
	Value  string
	Absent bool
}

// Compare checks e against an observation. It returns nil when the
// expectation holds.
func Compare(tick int, e compiler.Expectation, obs Observation) *Failure {
	switch exp := e.(type) {
	case compiler.BlockIs:
		if !obs.Absent && obs.Value == exp.Block {
			return nil
		}
		return &Failure{Tick: tick, Pos: exp.Pos, Expected: exp.Block, Observed: obs.Value, Absent: obs.Absent}
	case compiler.StateIs:
		if !obs.Absent && obs.Value == exp.Value {
			return nil
		}
		return &Failure{Tick: tick, Pos: exp.Pos, Property: exp.Property, Expected: exp.Value, Observed: obs.Value, Absent: obs.Absent}
	default:
		panic(fmt.Sprintf("assertion: unknown expectation %T", e))
	}
}

// Observe reads the value e is about from r.
func Observe(ctx context.Context, r gateway.Reader, e compiler.Expectation) (Observation, error) {
	switch exp := e.(type) {
	case compiler.BlockIs:
		id, err := r.QueryBlock(ctx, exp.Pos)
		if err != nil {
			return Observation{}, err
		}
		return Observation{Value: id}, nil
	case compiler.StateIs:
		v, ok, err := r.QueryBlockState(ctx, exp.Pos, exp.Property)
		if err != nil {
			return Observation{}, err
		}
		return Observation{Value: v, Absent: !ok}, nil
	default:
		return Observation{}, fmt.Errorf("assertion: unknown expectation %T", e)
	}
}

// Evaluate observes and compares one expectation.
func Evaluate(ctx context.Context, r gateway.Reader, tick int, e compiler.Expectation) (*Failure, error) {
	obs, err := Observe(ctx, r, e)
	if err != nil {
		return nil, err
	}
	return Compare(tick, e, obs), nil
}
