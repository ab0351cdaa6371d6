package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/flint/internal/gateway"
	"github.com/roach88/flint/internal/spec"
)

// Fault makes the Nth call (1-based) of Op fail. With Hang set the call
// blocks until its context ends instead of returning Err.
type Fault struct {
	Op   string
	Nth  int
	Err  error
	Hang bool
}

// RecordingGateway wraps a Gateway, logs every call in order, and injects
// faults. Op names: freeze, unfreeze, step, set_block, fill, sync, query,
// query_state.
//
// Thread-safety: RecordingGateway is safe for concurrent use.
type RecordingGateway struct {
	inner gateway.Gateway

	mu       sync.Mutex
	calls    []string
	counts   map[string]int
	faults   []Fault
	stepSkew int64
}

// NewRecordingGateway wraps inner.
func NewRecordingGateway(inner gateway.Gateway) *RecordingGateway {
	return &RecordingGateway{inner: inner, counts: make(map[string]int)}
}

// Inject adds a fault.
func (g *RecordingGateway) Inject(f Fault) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.faults = append(g.faults, f)
}

// SkewSteps adds d to every tick a Step acknowledges, simulating a world
// that advanced on its own.
func (g *RecordingGateway) SkewSteps(d int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stepSkew = d
}

// Calls returns the recorded calls, e.g. "step 1" or
// "set_block [0, 64, 0] minecraft:stone".
func (g *RecordingGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.calls))
	copy(out, g.calls)
	return out
}

// Count returns how many times op was called.
func (g *RecordingGateway) Count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[op]
}

func (g *RecordingGateway) before(ctx context.Context, op, call string) error {
	g.mu.Lock()
	g.calls = append(g.calls, call)
	g.counts[op]++
	n := g.counts[op]
	var hit *Fault
	for i := range g.faults {
		if g.faults[i].Op == op && g.faults[i].Nth == n {
			hit = &g.faults[i]
			break
		}
	}
	g.mu.Unlock()

	if hit == nil {
		return nil
	}
	if hit.Hang {
		<-ctx.Done()
		kind := gateway.KindCanceled
		if ctx.Err() == context.DeadlineExceeded {
			kind = gateway.KindTimeout
		}
		return &gateway.GatewayError{Op: op, Kind: kind, Err: ctx.Err()}
	}
	return hit.Err
}

func (g *RecordingGateway) Freeze(ctx context.Context) (int64, error) {
	if err := g.before(ctx, "freeze", "freeze"); err != nil {
		return 0, err
	}
	return g.inner.Freeze(ctx)
}

func (g *RecordingGateway) Unfreeze(ctx context.Context) error {
	if err := g.before(ctx, "unfreeze", "unfreeze"); err != nil {
		return err
	}
	return g.inner.Unfreeze(ctx)
}

func (g *RecordingGateway) Step(ctx context.Context, n int) (int64, error) {
	if err := g.before(ctx, "step", fmt.Sprintf("step %d", n)); err != nil {
		return 0, err
	}
	tick, err := g.inner.Step(ctx, n)
	g.mu.Lock()
	tick += g.stepSkew
	g.mu.Unlock()
	return tick, err
}

func (g *RecordingGateway) SetBlock(ctx context.Context, pos spec.Pos, block string) error {
	if err := g.before(ctx, "set_block", fmt.Sprintf("set_block %s %s", pos, block)); err != nil {
		return err
	}
	return g.inner.SetBlock(ctx, pos, block)
}

func (g *RecordingGateway) FillRegion(ctx context.Context, region spec.Region, block string) error {
	if err := g.before(ctx, "fill", fmt.Sprintf("fill %s %s", region, block)); err != nil {
		return err
	}
	return g.inner.FillRegion(ctx, region, block)
}

func (g *RecordingGateway) Sync(ctx context.Context) error {
	if err := g.before(ctx, "sync", "sync"); err != nil {
		return err
	}
	return g.inner.Sync(ctx)
}

func (g *RecordingGateway) QueryBlock(ctx context.Context, pos spec.Pos) (string, error) {
	if err := g.before(ctx, "query", fmt.Sprintf("query %s", pos)); err != nil {
		return "", err
	}
	return g.inner.QueryBlock(ctx, pos)
}

func (g *RecordingGateway) QueryBlockState(ctx context.Context, pos spec.Pos, property string) (string, bool, error) {
	if err := g.before(ctx, "query_state", fmt.Sprintf("query_state %s %s", pos, property)); err != nil {
		return "", false, err
	}
	return g.inner.QueryBlockState(ctx, pos, property)
}
