package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/flint/internal/assertion"
	"github.com/roach88/flint/internal/compiler"
	"github.com/roach88/flint/internal/gateway"
	"github.com/roach88/flint/internal/spec"
	"github.com/roach88/flint/internal/trace"
)

// DefaultOpTimeout bounds every individual gateway call.
const DefaultOpTimeout = 5 * time.Second

// Engine executes compiled schedules against a gateway.
type Engine struct {
	gw        gateway.Gateway
	logger    *slog.Logger
	clock     Sequencer
	recorder  trace.Recorder
	opTimeout time.Duration
	runID     string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the sequencer stamping trace events.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRecorder sets where trace events go. Defaults to trace.Discard.
func WithRecorder(r trace.Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithOpTimeout overrides DefaultOpTimeout. Non-positive values are
// ignored.
func WithOpTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.opTimeout = d
		}
	}
}

// WithRunID sets the run ID stamped on trace events.
func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

// New returns an Engine driving gw.
func New(gw gateway.Gateway, opts ...Option) *Engine {
	e := &Engine{
		gw:        gw,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:     NewClock(),
		recorder:  trace.Discard,
		opTimeout: DefaultOpTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the mutable state of one test execution. It never outlives Run.
type run struct {
	e        *Engine
	sched    *compiler.Schedule
	logger   *slog.Logger
	phase    Phase
	frozen   bool
	baseTick int64
	verdict  Verdict
}

// Run executes sched and returns its verdict. Run never returns an error:
// fatal gateway failures become an Errored verdict.
func (e *Engine) Run(ctx context.Context, sched *compiler.Schedule) Verdict {
	r := &run{
		e:       e,
		sched:   sched,
		logger:  e.logger.With("test", sched.Test),
		phase:   PhaseIdle,
		verdict: Verdict{Test: sched.Test, ScheduleHash: sched.Hash},
	}

	err := r.setup(ctx)
	if err == nil {
		err = r.running(ctx)
	}
	if terr := r.teardown(ctx); terr != nil {
		if err == nil {
			err = terr
		} else {
			r.logger.Warn("teardown failed after fatal error", "error", terr)
		}
	}

	r.enter(PhaseDone)
	r.verdict.settle(err)
	r.emit(trace.Event{Tick: -1, Kind: trace.KindVerdict, Detail: string(r.verdict.Status), OK: r.verdict.Passed(), Error: r.verdict.Error})
	r.logger.Info("test finished",
		"status", r.verdict.Status,
		"failures", len(r.verdict.Failures),
		"checks", r.verdict.Checks)
	return r.verdict
}

func (r *run) enter(p Phase) {
	r.logger.Debug("phase", "from", r.phase, "to", p)
	r.phase = p
}

func (r *run) setup(ctx context.Context) error {
	r.enter(PhaseSetup)
	if r.sched.Cleanup == nil {
		return nil
	}
	if err := r.cleanup(ctx); err != nil {
		return &PhaseError{Phase: PhaseSetup, Tick: -1, Err: err}
	}
	return nil
}

func (r *run) running(ctx context.Context) error {
	r.enter(PhaseRunning)

	var base int64
	err := r.call(ctx, func(ctx context.Context) (err error) {
		base, err = r.e.gw.Freeze(ctx)
		return err
	})
	r.emit(trace.Event{Tick: 0, WorldTick: base, Kind: trace.KindFreeze, OK: err == nil, Error: errString(err)})
	if err != nil {
		return &PhaseError{Phase: PhaseRunning, Tick: 0, Err: err}
	}
	r.frozen = true
	r.baseTick = base
	r.logger.Debug("time frozen", "world_tick", base)

	cursor := 0
	for _, st := range r.sched.Steps {
		for cursor < st.Tick {
			if err := r.step(ctx, cursor+1); err != nil {
				return &PhaseError{Phase: PhaseRunning, Tick: cursor + 1, Err: err}
			}
			cursor++
		}
		r.verdict.LastTick = st.Tick
		if err := r.tick(ctx, st); err != nil {
			return &PhaseError{Phase: PhaseRunning, Tick: st.Tick, Err: err}
		}
	}
	return nil
}

// step advances the world one tick and checks it landed on target.
func (r *run) step(ctx context.Context, target int) error {
	var got int64
	err := r.call(ctx, func(ctx context.Context) (err error) {
		got, err = r.e.gw.Step(ctx, 1)
		return err
	})
	want := r.baseTick + int64(target)
	if err == nil && got != want {
		err = &gateway.GatewayError{
			Op:   "step",
			Kind: gateway.KindDesync,
			Err:  fmt.Errorf("world at tick %d, expected %d", got, want),
		}
	}
	r.emit(trace.Event{Tick: target, WorldTick: got, Kind: trace.KindStep, OK: err == nil, Error: errString(err)})
	return err
}

// tick applies one step's mutations, waits for them to be visible, then
// evaluates its expectations.
func (r *run) tick(ctx context.Context, st compiler.Step) error {
	for _, m := range st.Mutations {
		var kind trace.Kind
		err := r.call(ctx, func(ctx context.Context) error {
			switch mut := m.(type) {
			case compiler.SetBlock:
				kind = trace.KindSetBlock
				return r.e.gw.SetBlock(ctx, mut.Pos, mut.Block)
			case compiler.FillRegion:
				kind = trace.KindFill
				return r.e.gw.FillRegion(ctx, mut.Region, mut.Block)
			default:
				return fmt.Errorf("unknown mutation %T", m)
			}
		})
		r.emit(trace.Event{Tick: st.Tick, Kind: kind, Detail: m.String(), OK: err == nil, Error: errString(err)})
		if err != nil {
			return err
		}
	}

	err := r.call(ctx, r.e.gw.Sync)
	r.emit(trace.Event{Tick: st.Tick, Kind: trace.KindSync, OK: err == nil, Error: errString(err)})
	if err != nil {
		return err
	}

	for _, exp := range st.Expectations {
		var failure *assertion.Failure
		err := r.call(ctx, func(ctx context.Context) (err error) {
			failure, err = assertion.Evaluate(ctx, r.e.gw, st.Tick, exp)
			return err
		})
		if err != nil {
			r.emit(trace.Event{Tick: st.Tick, Kind: trace.KindCheck, Detail: exp.String(), Error: err.Error()})
			return err
		}
		r.verdict.Checks++
		ev := trace.Event{Tick: st.Tick, Kind: trace.KindCheck, Detail: exp.String(), OK: failure == nil}
		if failure != nil {
			r.verdict.Failures = append(r.verdict.Failures, *failure)
			ev.Error = failure.String()
			r.logger.Debug("check failed", "tick", st.Tick, "failure", failure.String())
		}
		r.emit(ev)
	}
	return nil
}

// teardown releases the freeze and clears the region. It runs on a
// context that ignores the caller's cancellation but keeps its values.
func (r *run) teardown(ctx context.Context) error {
	r.enter(PhaseTeardown)
	ctx = context.WithoutCancel(ctx)

	var first error
	if r.frozen {
		err := r.call(ctx, r.e.gw.Unfreeze)
		r.emit(trace.Event{Tick: -1, Kind: trace.KindUnfreeze, OK: err == nil, Error: errString(err)})
		if err != nil {
			first = err
		} else {
			r.frozen = false
		}
	}
	if r.sched.Cleanup != nil {
		if err := r.cleanup(ctx); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return &PhaseError{Phase: PhaseTeardown, Tick: -1, Err: first}
	}
	return nil
}

func (r *run) cleanup(ctx context.Context) error {
	region := *r.sched.Cleanup
	err := r.call(ctx, func(ctx context.Context) error {
		return r.e.gw.FillRegion(ctx, region, spec.Air)
	})
	if err == nil {
		err = r.call(ctx, r.e.gw.Sync)
	}
	r.emit(trace.Event{Tick: -1, Kind: trace.KindCleanup, Detail: region.String(), OK: err == nil, Error: errString(err)})
	return err
}

// call runs one gateway operation under the per-operation timeout.
func (r *run) call(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.e.opTimeout)
	defer cancel()
	return op(ctx)
}

func (r *run) emit(ev trace.Event) {
	ev.RunID = r.e.runID
	ev.Test = r.sched.Test
	ev.Seq = r.e.clock.Next()
	if err := r.e.recorder.Record(ev); err != nil {
		r.logger.Warn("trace record failed", "kind", ev.Kind, "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
