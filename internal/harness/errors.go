package harness

import (
	"errors"
	"fmt"
	"strings"
)

// PlanErrorCode categorizes planning failures.
type PlanErrorCode string

const (
	ErrCodeDuplicateTest     PlanErrorCode = "DUPLICATE_TEST"
	ErrCodeUnknownDependency PlanErrorCode = "UNKNOWN_DEPENDENCY"
	ErrCodeCyclicDependency  PlanErrorCode = "CYCLIC_DEPENDENCY"
)

// PlanError reports why a set of tests cannot be ordered. Plan errors are
// fatal: nothing runs.
type PlanError struct {
	Code PlanErrorCode

	// Test is the test the error is about (the dependent for
	// UNKNOWN_DEPENDENCY).
	Test string

	// Dependency is the missing name for UNKNOWN_DEPENDENCY.
	Dependency string

	// Cycles lists each dependency cycle, members in discovery order.
	Cycles [][]string
}

func (e *PlanError) Error() string {
	switch e.Code {
	case ErrCodeDuplicateTest:
		return fmt.Sprintf("%s: test %q is defined more than once", e.Code, e.Test)
	case ErrCodeUnknownDependency:
		return fmt.Sprintf("%s: test %q depends on %q, which is not in this run", e.Code, e.Test, e.Dependency)
	case ErrCodeCyclicDependency:
		parts := make([]string, len(e.Cycles))
		for i, c := range e.Cycles {
			parts[i] = "[" + strings.Join(c, ", ") + "]"
		}
		return fmt.Sprintf("%s: %s", e.Code, strings.Join(parts, "; "))
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Test)
	}
}

// IsPlanError reports whether err is a PlanError with the given code.
// Uses errors.As to handle wrapped errors.
func IsPlanError(err error, code PlanErrorCode) bool {
	var pe *PlanError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
