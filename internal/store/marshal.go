package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/flint/internal/assertion"
	"github.com/roach88/flint/internal/canon"
)

// marshalFailures converts failures to canonical JSON TEXT for storage.
func marshalFailures(failures []assertion.Failure) (string, error) {
	if failures == nil {
		failures = []assertion.Failure{}
	}
	data, err := canon.MarshalValue(failures)
	if err != nil {
		return "", fmt.Errorf("marshal failures: %w", err)
	}
	return string(data), nil
}

func unmarshalFailures(text string) ([]assertion.Failure, error) {
	var failures []assertion.Failure
	if err := json.Unmarshal([]byte(text), &failures); err != nil {
		return nil, fmt.Errorf("unmarshal failures: %w", err)
	}
	if len(failures) == 0 {
		return nil, nil
	}
	return failures, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
