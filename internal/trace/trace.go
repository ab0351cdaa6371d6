// Package trace records what a run did to the world, one event per
// gateway interaction and per evaluated check.
//
// Events are stamped by the engine with a monotonic sequence number from a
// logical clock, never a wall-clock time, so two runs of the same schedule
// against the same world produce identical traces apart from the run ID.
package trace

import (
	"errors"
	"sync"
)

// Kind names what an event records.
type Kind string

const (
	KindCleanup  Kind = "cleanup"
	KindFreeze   Kind = "freeze"
	KindStep     Kind = "step"
	KindSetBlock Kind = "set_block"
	KindFill     Kind = "fill"
	KindSync     Kind = "sync"
	KindCheck    Kind = "check"
	KindUnfreeze Kind = "unfreeze"
	KindVerdict  Kind = "verdict"
)

// Event is one traced interaction.
type Event struct {
	RunID string `json:"run_id"`
	Seq   int64  `json:"seq"`
	Test  string `json:"test"`

	// Tick is the schedule tick the event belongs to. Setup and teardown
	// events use -1.
	Tick int `json:"tick"`

	// WorldTick is the world's tick counter when known (freeze and step
	// acknowledgments), otherwise 0.
	WorldTick int64 `json:"world_tick,omitempty"`

	Kind   Kind   `json:"kind"`
	Detail string `json:"detail,omitempty"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Recorder receives trace events in order.
type Recorder interface {
	Record(Event) error
}

// Discard drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(Event) error { return nil }

// Memory keeps events in memory.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory returns an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Reset drops every recorded event.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// Multi fans each event out to several recorders. Every recorder sees
// every event; their errors are joined.
type Multi []Recorder

func (m Multi) Record(e Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ForTest returns the events belonging to test, in order.
func ForTest(events []Event, test string) []Event {
	var out []Event
	for _, e := range events {
		if e.Test == test {
			out = append(out, e)
		}
	}
	return out
}

// Kinds returns the kind of each event, for compact assertions.
func Kinds(events []Event) []Kind {
	out := make([]Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}
