package compiler

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/flint/internal/spec"
)

// Mutation changes the world. It is SetBlock or FillRegion.
type Mutation interface {
	fmt.Stringer
	mutation()
}

// Expectation is checked against the world after a tick's mutations have
// converged. It is BlockIs or StateIs.
type Expectation interface {
	fmt.Stringer
	expectation()
}

// SetBlock places a single block.
type SetBlock struct {
	Pos   spec.Pos `json:"pos"`
	Block string   `json:"block"`
}

// FillRegion sets every block of a region.
type FillRegion struct {
	Region spec.Region `json:"region"`
	Block  string      `json:"block"`
}

// BlockIs expects the block id at Pos to equal Block exactly.
type BlockIs struct {
	Pos   spec.Pos `json:"pos"`
	Block string   `json:"block"`
}

// StateIs expects block-state Property at Pos to equal Value.
type StateIs struct {
	Pos      spec.Pos `json:"pos"`
	Property string   `json:"property"`
	Value    string   `json:"value"`
}

func (SetBlock) mutation()    {}
func (FillRegion) mutation()  {}
func (BlockIs) expectation()  {}
func (StateIs) expectation()  {}

func (m SetBlock) String() string   { return fmt.Sprintf("set_block %s %s", m.Pos, m.Block) }
func (m FillRegion) String() string { return fmt.Sprintf("fill %s %s", m.Region, m.Block) }
func (e BlockIs) String() string    { return fmt.Sprintf("block %s is %s", e.Pos, e.Block) }
func (e StateIs) String() string    { return fmt.Sprintf("block %s %s=%s", e.Pos, e.Property, e.Value) }

// The JSON forms carry an "op" tag so a marshaled step can be told apart
// without the Go types.

func (m SetBlock) MarshalJSON() ([]byte, error) {
	type plain SetBlock
	return json.Marshal(struct {
		Op string `json:"op"`
		plain
	}{"set_block", plain(m)})
}

func (m FillRegion) MarshalJSON() ([]byte, error) {
	type plain FillRegion
	return json.Marshal(struct {
		Op string `json:"op"`
		plain
	}{"fill", plain(m)})
}

func (e BlockIs) MarshalJSON() ([]byte, error) {
	type plain BlockIs
	return json.Marshal(struct {
		Op string `json:"op"`
		plain
	}{"block_is", plain(e)})
}

func (e StateIs) MarshalJSON() ([]byte, error) {
	type plain StateIs
	return json.Marshal(struct {
		Op string `json:"op"`
		plain
	}{"state_is", plain(e)})
}

// Step is everything scheduled for one tick.
type Step struct {
	Tick         int           `json:"tick"`
	Mutations    []Mutation    `json:"mutations,omitempty"`
	Expectations []Expectation `json:"expectations,omitempty"`
}

// Schedule is a compiled test. Steps are in strictly ascending tick order.
type Schedule struct {
	Test string `json:"test"`

	// Cleanup is the normalized cleanup region, nil when the test has none.
	Cleanup *spec.Region `json:"cleanup,omitempty"`

	Steps []Step `json:"steps"`

	// Hash identifies the schedule's content, for correlating traces of
	// the same test across runs.
	Hash string `json:"hash"`
}

// LastTick returns the tick of the final step.
func (s *Schedule) LastTick() int {
	if len(s.Steps) == 0 {
		return 0
	}
	return s.Steps[len(s.Steps)-1].Tick
}

// Counts returns the number of mutations and expectations in the schedule.
func (s *Schedule) Counts() (mutations, expectations int) {
	for _, st := range s.Steps {
		mutations += len(st.Mutations)
		expectations += len(st.Expectations)
	}
	return mutations, expectations
}
