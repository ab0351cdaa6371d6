package spec

import (
	"encoding/json"
	"fmt"
)

// ActionKind is the value of a timeline event's `do` field.
type ActionKind string

const (
	KindPlace       ActionKind = "place"
	KindPlaceEach   ActionKind = "place_each"
	KindFill        ActionKind = "fill"
	KindRemove      ActionKind = "remove"
	KindAssert      ActionKind = "assert"
	KindAssertState ActionKind = "assert_state"
)

// Action is one of Place, PlaceEach, Fill, Remove, Assert or AssertState.
// The set is closed: the unexported marker keeps other packages from
// adding variants the compiler would not know how to lower.
type Action interface {
	Kind() ActionKind
	// Positions lists every block position the action reads or writes.
	Positions() []Pos
	action()
}

// Place sets one block.
type Place struct {
	Pos   Pos    `json:"pos"`
	Block string `json:"block"`
}

// PlaceEach sets several blocks in declaration order.
type PlaceEach struct {
	Blocks []Placement `json:"blocks"`
}

// Placement is one entry of PlaceEach.
type Placement struct {
	Pos   Pos    `json:"pos"`
	Block string `json:"block"`
}

// Fill sets every block of a region.
type Fill struct {
	Region Region `json:"region"`
	With   string `json:"with"`
}

// Remove replaces one block with air.
type Remove struct {
	Pos Pos `json:"pos"`
}

// Assert checks block identity at one or more positions.
type Assert struct {
	Checks []BlockCheck `json:"checks"`
}

// BlockCheck expects the block at Pos to be Is.
type BlockCheck struct {
	Pos Pos    `json:"pos"`
	Is  string `json:"is"`
}

// AssertState checks one block-state property. Values holds one expected
// value per tick listed in the event's `at`.
type AssertState struct {
	Pos    Pos      `json:"pos"`
	State  string   `json:"state"`
	Values []string `json:"values"`
}

func (Place) Kind() ActionKind       { return KindPlace }
func (PlaceEach) Kind() ActionKind   { return KindPlaceEach }
func (Fill) Kind() ActionKind        { return KindFill }
func (Remove) Kind() ActionKind      { return KindRemove }
func (Assert) Kind() ActionKind      { return KindAssert }
func (AssertState) Kind() ActionKind { return KindAssertState }

func (Place) action()       {}
func (PlaceEach) action()   {}
func (Fill) action()        {}
func (Remove) action()      {}
func (Assert) action()      {}
func (AssertState) action() {}

func (a Place) Positions() []Pos { return []Pos{a.Pos} }

func (a PlaceEach) Positions() []Pos {
	out := make([]Pos, 0, len(a.Blocks))
	for _, b := range a.Blocks {
		out = append(out, b.Pos)
	}
	return out
}

func (a Fill) Positions() []Pos { return []Pos{a.Region[0], a.Region[1]} }

func (a Remove) Positions() []Pos { return []Pos{a.Pos} }

func (a Assert) Positions() []Pos {
	out := make([]Pos, 0, len(a.Checks))
	for _, c := range a.Checks {
		out = append(out, c.Pos)
	}
	return out
}

func (a AssertState) Positions() []Pos { return []Pos{a.Pos} }

// TimelineEvent is one entry of a test's timeline.
type TimelineEvent struct {
	At     At
	Action Action
}

// Do returns the event's action kind, or "" when no action is set.
func (e TimelineEvent) Do() ActionKind {
	if e.Action == nil {
		return ""
	}
	return e.Action.Kind()
}

// UnmarshalJSON decodes the flattened file form: `at`, `do` and the
// selected action's fields side by side in one object.
func (e *TimelineEvent) UnmarshalJSON(data []byte) error {
	var head struct {
		At At     `json:"at"`
		Do string `json:"do"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	var (
		act Action
		err error
	)
	switch ActionKind(head.Do) {
	case KindPlace:
		act, err = decodeAction[Place](data)
	case KindPlaceEach:
		act, err = decodeAction[PlaceEach](data)
	case KindFill:
		act, err = decodeAction[Fill](data)
	case KindRemove:
		act, err = decodeAction[Remove](data)
	case KindAssert:
		act, err = decodeAction[Assert](data)
	case KindAssertState:
		act, err = decodeAction[AssertState](data)
	case "":
		return fmt.Errorf("timeline event: missing \"do\"")
	default:
		return fmt.Errorf("timeline event: unknown action %q", head.Do)
	}
	if err != nil {
		return fmt.Errorf("timeline event %q: %w", head.Do, err)
	}

	e.At = head.At
	e.Action = act
	return nil
}

func decodeAction[T Action](data []byte) (Action, error) {
	var a T
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return a, nil
}

// MarshalJSON writes the flattened file form.
func (e TimelineEvent) MarshalJSON() ([]byte, error) {
	if e.Action == nil {
		return nil, fmt.Errorf("timeline event has no action")
	}
	body, err := json.Marshal(e.Action)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	at, err := json.Marshal(e.At)
	if err != nil {
		return nil, err
	}
	do, err := json.Marshal(e.Action.Kind())
	if err != nil {
		return nil, err
	}
	fields["at"] = at
	fields["do"] = do
	return json.Marshal(fields)
}
