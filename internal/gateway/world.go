package gateway

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/flint/internal/canon"
	"github.com/roach88/flint/internal/spec"
)

// DefaultFillLimit is the largest region a single fill may touch.
const DefaultFillLimit = 32768

// Rule is applied once per simulated tick, after the tick counter has
// advanced. Rules run in registration order.
type Rule func(tick int64, blocks *Blocks)

// World is an in-memory, tick-stepped world. It implements Gateway with
// every call acknowledged synchronously.
//
// An unfrozen World does not advance on its own; Advance (or a Server
// clock) moves it forward.
type World struct {
	mu        sync.Mutex
	blocks    map[spec.Pos]BlockState
	dirty     map[spec.Pos]struct{}
	tick      int64
	frozen    bool
	rules     []Rule
	fillLimit int
	logger    *slog.Logger
}

// WorldOption configures a World.
type WorldOption func(*World)

// WithRules registers per-tick rules.
func WithRules(rules ...Rule) WorldOption {
	return func(w *World) {
		w.rules = append(w.rules, rules...)
	}
}

// WithFillLimit overrides DefaultFillLimit.
func WithFillLimit(n int) WorldOption {
	return func(w *World) {
		w.fillLimit = n
	}
}

// WithStartTick sets the initial tick counter.
func WithStartTick(t int64) WorldOption {
	return func(w *World) {
		w.tick = t
	}
}

// WithWorldLogger sets the logger for world events.
func WithWorldLogger(l *slog.Logger) WorldOption {
	return func(w *World) {
		w.logger = l
	}
}

// NewWorld returns an empty, unfrozen world at tick 0.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		blocks:    make(map[spec.Pos]BlockState),
		dirty:     make(map[spec.Pos]struct{}),
		fillLimit: DefaultFillLimit,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) Freeze(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fromContext("freeze", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frozen = true
	return w.tick, nil
}

func (w *World) Unfreeze(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fromContext("unfreeze", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frozen = false
	return nil
}

func (w *World) Step(ctx context.Context, n int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fromContext("step", err)
	}
	if n < 1 {
		return 0, rejected("step", "step count must be positive, got %d", n)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.frozen {
		return 0, rejected("step", "time is not frozen")
	}
	for i := 0; i < n; i++ {
		w.advanceLocked()
	}
	return w.tick, nil
}

// Advance moves an unfrozen world forward one tick. It reports whether
// the world advanced.
func (w *World) Advance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.frozen {
		return false
	}
	w.advanceLocked()
	return true
}

func (w *World) advanceLocked() {
	w.tick++
	b := &Blocks{w: w}
	for _, r := range w.rules {
		r(w.tick, b)
	}
}

func (w *World) SetBlock(ctx context.Context, pos spec.Pos, block string) error {
	if err := ctx.Err(); err != nil {
		return fromContext("set_block", err)
	}
	bs, err := ParseBlockState(block)
	if err != nil {
		return &GatewayError{Op: "set_block", Kind: KindRejected, Err: err}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setLocked(pos, bs)
	w.logger.Debug("set block", "pos", pos.String(), "block", bs.String(), "tick", w.tick)
	return nil
}

func (w *World) FillRegion(ctx context.Context, region spec.Region, block string) error {
	if err := ctx.Err(); err != nil {
		return fromContext("fill", err)
	}
	if v := region.Volume(); v > w.fillLimit {
		return rejected("fill", "region %s holds %d blocks, limit is %d", region, v, w.fillLimit)
	}
	bs, err := ParseBlockState(block)
	if err != nil {
		return &GatewayError{Op: "fill", Kind: KindRejected, Err: err}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	region.Each(func(p spec.Pos) {
		w.setLocked(p, bs)
	})
	w.logger.Debug("fill", "region", region.String(), "block", bs.String(), "tick", w.tick)
	return nil
}

// Sync is a no-op: World mutations are visible as soon as they return.
func (w *World) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fromContext("sync", err)
	}
	return nil
}

func (w *World) QueryBlock(ctx context.Context, pos spec.Pos) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fromContext("query", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	bs, ok := w.blocks[pos]
	if !ok {
		return spec.Air, nil
	}
	return bs.ID, nil
}

func (w *World) QueryBlockState(ctx context.Context, pos spec.Pos, property string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fromContext("query", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.blocks[pos].Prop(property)
	return v, ok, nil
}

func (w *World) setLocked(p spec.Pos, bs BlockState) {
	prev, had := w.blocks[p]
	if bs.IsAir() {
		if !had {
			return
		}
		delete(w.blocks, p)
	} else {
		if had && prev.String() == bs.String() {
			return
		}
		w.blocks[p] = bs
	}
	w.dirty[p] = struct{}{}
}

// CurrentTick returns the tick counter.
func (w *World) CurrentTick() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

// Frozen reports whether time is paused.
func (w *World) Frozen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frozen
}

// Block returns the full block state string at pos.
func (w *World) Block(pos spec.Pos) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	bs, ok := w.blocks[pos]
	if !ok {
		return spec.Air
	}
	return bs.String()
}

// Changes drains the set of positions modified since the last call and
// returns their current blocks in position order.
func (w *World) Changes() []BlockUpdate {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.dirty) == 0 {
		return nil
	}
	positions := make([]spec.Pos, 0, len(w.dirty))
	for p := range w.dirty {
		positions = append(positions, p)
	}
	w.dirty = make(map[spec.Pos]struct{})
	return w.updatesLocked(positions)
}

// Snapshot returns every non-air block in position order.
func (w *World) Snapshot() []BlockUpdate {
	w.mu.Lock()
	defer w.mu.Unlock()
	positions := make([]spec.Pos, 0, len(w.blocks))
	for p := range w.blocks {
		positions = append(positions, p)
	}
	return w.updatesLocked(positions)
}

// SnapshotHash returns a content hash of the world's blocks.
func (w *World) SnapshotHash() (string, error) {
	snap := w.Snapshot()
	if snap == nil {
		snap = []BlockUpdate{}
	}
	return canon.Hash(canon.DomainSnapshot, snap)
}

func (w *World) updatesLocked(positions []spec.Pos) []BlockUpdate {
	sortPositions(positions)
	out := make([]BlockUpdate, 0, len(positions))
	for _, p := range positions {
		block := spec.Air
		if bs, ok := w.blocks[p]; ok {
			block = bs.String()
		}
		out = append(out, BlockUpdate{Pos: p, Block: block})
	}
	return out
}

// sortPositions orders by y, then z, then x.
func sortPositions(ps []spec.Pos) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		if a[2] != b[2] {
			return a[2] < b[2]
		}
		return a[0] < b[0]
	})
}

// Blocks is the view of a World handed to rules. It is only valid during
// the rule call.
type Blocks struct {
	w *World
}

// Get returns the block at pos (air when unset).
func (b *Blocks) Get(pos spec.Pos) BlockState {
	if bs, ok := b.w.blocks[pos]; ok {
		return bs
	}
	return BlockState{ID: spec.Air}
}

// Set replaces the block at pos.
func (b *Blocks) Set(pos spec.Pos, bs BlockState) {
	b.w.setLocked(pos, bs)
}

// Positions returns the positions of every non-air block in position
// order.
func (b *Blocks) Positions() []spec.Pos {
	out := make([]spec.Pos, 0, len(b.w.blocks))
	for p := range b.w.blocks {
		out = append(out, p)
	}
	sortPositions(out)
	return out
}
