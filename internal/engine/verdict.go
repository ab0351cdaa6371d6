package engine

import (
	"github.com/roach88/flint/internal/assertion"
)

// Status is the outcome of one test.
type Status string

const (
	// StatusPassed means every expectation held.
	StatusPassed Status = "passed"

	// StatusFailed means at least one expectation did not hold.
	StatusFailed Status = "failed"

	// StatusErrored means the run hit a fatal gateway error. Failures
	// recorded before the error are kept.
	StatusErrored Status = "errored"
)

// Verdict is the result of running one test.
type Verdict struct {
	Test     string              `json:"test"`
	Status   Status              `json:"status"`
	Failures []assertion.Failure `json:"failures,omitempty"`

	// Err is the fatal error behind StatusErrored.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`

	// Checks counts evaluated expectations.
	Checks int `json:"checks"`

	// LastTick is the last schedule tick reached.
	LastTick int `json:"last_tick"`

	ScheduleHash string `json:"schedule_hash,omitempty"`
}

// Passed reports whether the test passed.
func (v Verdict) Passed() bool { return v.Status == StatusPassed }

func (v *Verdict) settle(err error) {
	switch {
	case err != nil:
		v.Status = StatusErrored
		v.Err = err
		v.Error = err.Error()
	case len(v.Failures) > 0:
		v.Status = StatusFailed
	default:
		v.Status = StatusPassed
	}
}
