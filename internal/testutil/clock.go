package testutil

import "sync"

// DeterministicClock is a resettable logical clock for tests, so one
// world can be reused across subtests with identical trace sequence
// numbers.
//
// Thread-safety: DeterministicClock is safe for concurrent use.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last sequence number handed out.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next Next returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// FixedRunID always generates the same run ID.
type FixedRunID string

// Generate returns the ID, or "test-run" when empty.
func (id FixedRunID) Generate() string {
	if id == "" {
		return "test-run"
	}
	return string(id)
}
