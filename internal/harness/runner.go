package harness

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/flint/internal/compiler"
	"github.com/roach88/flint/internal/engine"
	"github.com/roach88/flint/internal/gateway"
	"github.com/roach88/flint/internal/spec"
	"github.com/roach88/flint/internal/trace"
)

// Runner executes planned suites against one gateway.
type Runner struct {
	gw        gateway.Gateway
	logger    *slog.Logger
	recorder  trace.Recorder
	clock     engine.Sequencer
	ids       engine.RunIDGenerator
	opTimeout time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger. Defaults to discarding.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithRecorder sets where trace events go.
func WithRecorder(rec trace.Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithClock sets the sequencer shared by every test of a run.
func WithClock(c engine.Sequencer) RunnerOption {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithRunIDs sets the run ID generator. Defaults to UUIDv7.
func WithRunIDs(g engine.RunIDGenerator) RunnerOption {
	return func(r *Runner) {
		r.ids = g
	}
}

// WithOpTimeout sets the per-operation gateway timeout.
func WithOpTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.opTimeout = d
	}
}

// NewRunner returns a Runner driving gw.
func NewRunner(gw gateway.Gateway, opts ...RunnerOption) *Runner {
	r := &Runner{
		gw:        gw,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder:  trace.Discard,
		clock:     engine.NewClock(),
		ids:       engine.UUIDv7Generator{},
		opTimeout: engine.DefaultOpTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Compile compiles every planned test, in plan order. The first compile
// error is returned and nothing else is compiled.
func Compile(plan *SuitePlan) ([]*compiler.Schedule, error) {
	scheds := make([]*compiler.Schedule, 0, len(plan.Tests))
	for _, t := range plan.Tests {
		s, err := compiler.Compile(t)
		if err != nil {
			return nil, err
		}
		scheds = append(scheds, s)
	}
	return scheds, nil
}

// Run compiles and executes plan. A compile error aborts before any world
// interaction and is returned with a nil report. Otherwise every test runs,
// in order, and the report holds one verdict per test.
func (r *Runner) Run(ctx context.Context, plan *SuitePlan) (*Report, error) {
	scheds, err := Compile(plan)
	if err != nil {
		return nil, err
	}

	runID := r.ids.Generate()
	logger := r.logger.With("run_id", runID)
	eng := engine.New(r.gw,
		engine.WithLogger(logger),
		engine.WithClock(r.clock),
		engine.WithRecorder(r.recorder),
		engine.WithOpTimeout(r.opTimeout),
		engine.WithRunID(runID),
	)

	report := &Report{RunID: runID, Verdicts: make([]engine.Verdict, 0, len(scheds))}
	logger.Info("run started", "tests", len(scheds))
	for _, s := range scheds {
		v := eng.Run(ctx, s)
		report.add(v)
		if v.Status == engine.StatusErrored {
			logger.Warn("test errored", "test", v.Test, "error", v.Err)
		}
	}
	logger.Info("run finished",
		"passed", report.Passed,
		"failed", report.Failed,
		"errored", report.Errored)
	return report, nil
}

// RunTests plans and runs tests in discovery order.
func (r *Runner) RunTests(ctx context.Context, tests []*spec.TestSpec) (*Report, error) {
	plan, err := Plan(tests)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, plan)
}
