package compiler

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeEmptyTimeline indicates a test with no timeline events.
	ErrCodeEmptyTimeline ErrorCode = "EMPTY_TIMELINE"

	// ErrCodeNegativeTick indicates a tick below zero.
	ErrCodeNegativeTick ErrorCode = "NEGATIVE_TICK"

	// ErrCodeMismatchedArrayLengths indicates an assert_state whose values
	// do not pair one-to-one with its ticks.
	ErrCodeMismatchedArrayLengths ErrorCode = "MISMATCHED_ARRAY_LENGTHS"

	// ErrCodeEmptyTickList indicates `at: []`.
	ErrCodeEmptyTickList ErrorCode = "EMPTY_TICK_LIST"

	// ErrCodeInvalidSpec indicates the spec failed model validation.
	ErrCodeInvalidSpec ErrorCode = "INVALID_SPEC"
)

// CompileError reports why a test could not be compiled. Compile errors
// are fatal and always surface before any world interaction.
type CompileError struct {
	Code ErrorCode
	Test string

	// Event is the index of the offending timeline event, or -1 when the
	// error concerns the test as a whole.
	Event int

	Message string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Event >= 0 {
		return fmt.Sprintf("%s: test %q timeline[%d]: %s", e.Code, e.Test, e.Event, e.Message)
	}
	return fmt.Sprintf("%s: test %q: %s", e.Code, e.Test, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Err }

// HasCode reports whether err is a CompileError with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code ErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
