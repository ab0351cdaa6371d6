package engine

import (
	"errors"
	"fmt"
)

// Phase is a state of a test run.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseSetup    Phase = "setup"
	PhaseRunning  Phase = "running"
	PhaseTeardown Phase = "teardown"
	PhaseDone     Phase = "done"
)

// PhaseError attributes a fatal error to the phase and schedule tick where
// it happened. Tick is -1 outside Running.
type PhaseError struct {
	Phase Phase
	Tick  int
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Tick >= 0 {
		return fmt.Sprintf("%s tick %d: %v", e.Phase, e.Tick, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// IsTeardownError reports whether err happened during teardown.
// Uses errors.As to handle wrapped errors.
func IsTeardownError(err error) bool {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase == PhaseTeardown
	}
	return false
}
