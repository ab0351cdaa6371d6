package engine

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers for trace
// events.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock. Trace events are ordered by its
// sequence numbers, never by wall-clock time, so a rerun of the same
// schedule yields the same sequence.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first Next is start+1. Used to continue
// numbering into an existing trace database.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
