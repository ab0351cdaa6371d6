package gateway

import (
	"context"

	"github.com/roach88/flint/internal/spec"
)

// Reader reads the tracked world snapshot.
type Reader interface {
	// QueryBlock returns the block id at pos without its state properties.
	// Unknown positions read as spec.Air.
	QueryBlock(ctx context.Context, pos spec.Pos) (string, error)

	// QueryBlockState returns the value of one state property of the block
	// at pos. ok is false when the block has no such property.
	QueryBlockState(ctx context.Context, pos spec.Pos, property string) (value string, ok bool, err error)
}

// Gateway drives a tick-stepped world. Freeze and Step are global
// controls, so a Gateway is handed to exactly one running test at a time.
type Gateway interface {
	Reader

	// Freeze pauses simulated time and returns the current tick. It is
	// safe to call while already frozen.
	Freeze(ctx context.Context) (int64, error)

	// Unfreeze resumes simulated time.
	Unfreeze(ctx context.Context) error

	// Step advances exactly n ticks (n > 0) and returns the new tick.
	Step(ctx context.Context, n int) (int64, error)

	// SetBlock places one block.
	SetBlock(ctx context.Context, pos spec.Pos, block string) error

	// FillRegion sets every block of region.
	FillRegion(ctx context.Context, region spec.Region, block string) error

	// Sync returns once every acknowledged mutation is visible to the
	// Reader methods.
	Sync(ctx context.Context) error
}
