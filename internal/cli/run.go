package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/flint/internal/gateway"
	"github.com/roach88/flint/internal/harness"
	"github.com/roach88/flint/internal/journal"
	"github.com/roach88/flint/internal/store"
	"github.com/roach88/flint/internal/trace"
)

const dialTimeout = 10 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Server    string
	Sim       bool
	Recursive bool
	Tags      []string
	OpTimeout time.Duration
	Journal   string
	TraceDB   string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <path>",
		Short: "Run tests against a world",
		Long: `Load every test under a path, order them by dependencies and run them
one at a time against a world server.

Without --server the tests run against an in-process simulated world.
Every test is compiled before the first world interaction; one bad test
aborts the run.

Exit codes:
  0 - All tests passed
  1 - One or more tests failed or errored
  2 - Command error (bad path, load, compile or plan error, unreachable server)

Examples:
  flint run ./tests
  flint run ./tests --server ws://localhost:25585/ --tag redstone
  flint run ./tests --journal out/run.jsonl.zst --trace-db out/trace.db
  flint run ./tests --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", "", "websocket URL of the world server")
	cmd.Flags().BoolVar(&opts.Sim, "sim", false, "run against an in-process simulated world")
	cmd.MarkFlagsMutuallyExclusive("server", "sim")
	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().StringSliceVarP(&opts.Tags, "tag", "t", nil, "only tests carrying one of these tags")
	cmd.Flags().DurationVar(&opts.OpTimeout, "op-timeout", 0, "timeout for each world operation (default from config, 5s)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "write the trace to a zstd JSONL journal")
	cmd.Flags().StringVar(&opts.TraceDB, "trace-db", "", "record the run in a SQLite database")

	return cmd
}

// merge applies config values for every flag left unset.
func (o *RunOptions) merge(cmd *cobra.Command) {
	cfg := o.cfg
	changed := cmd.Flags().Changed
	if !changed("server") && !o.Sim {
		o.Server = cfg.Server
	}
	if !changed("recursive") {
		o.Recursive = cfg.Recursive
	}
	if !changed("tag") {
		o.Tags = cfg.Tags
	}
	if !changed("op-timeout") {
		o.OpTimeout = cfg.OpTimeout
	}
	if !changed("journal") {
		o.Journal = cfg.Journal
	}
	if !changed("trace-db") {
		o.TraceDB = cfg.TraceDB
	}
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	opts.merge(cmd)
	f := opts.formatter(cmd)
	logger := opts.logger(cmd)

	if opts.OpTimeout < 0 {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("--op-timeout must not be negative, got %s", opts.OpTimeout), nil)
	}

	tests, err := loadAll(f, path, opts.Recursive)
	if err != nil {
		return err
	}
	selected := harness.Select(tests, opts.Tags)
	if len(selected) == 0 {
		return f.Fail(ExitCommandError, ErrCodeNoFiles, fmt.Sprintf("no tests match tags %v", opts.Tags), nil)
	}
	plan, err := harness.Plan(selected)
	if err != nil {
		return reportIssues(f, ExitCommandError, ErrCodePlan, "failed to plan tests", []Issue{issueFor("", "", err)})
	}
	// Compile up front so a bad test never costs a server connection.
	if _, err := harness.Compile(plan); err != nil {
		return reportIssues(f, ExitCommandError, ErrCodeCompile, "failed to compile tests", []Issue{issueFor("", "", err)})
	}

	gw, closeGateway, err := opts.openGateway(ctx, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConnect, "failed to connect to world", err)
	}
	defer closeGateway()

	recorder, closeSinks, st, err := opts.openSinks(logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to open trace output", err)
	}

	runner := harness.NewRunner(gw,
		harness.WithLogger(logger),
		harness.WithRecorder(recorder),
		harness.WithOpTimeout(opts.OpTimeout),
	)
	report, err := runner.Run(ctx, plan)
	if err != nil {
		_ = closeSinks()
		return f.Fail(ExitCommandError, ErrCodeCompile, "run aborted", err)
	}

	var sinkErr error
	if st != nil {
		sinkErr = st.WriteReport(context.WithoutCancel(ctx), report)
	}
	sinkErr = errors.Join(sinkErr, closeSinks())
	if sinkErr != nil {
		logger.Error("trace output incomplete", "run_id", report.RunID, "error", sinkErr)
	}

	if f.JSON() {
		status := "ok"
		var cliErr *CLIError
		if !report.OK() {
			status = "error"
			cliErr = &CLIError{Code: ErrCodeTestsFailed, Message: fmt.Sprintf("%d failed, %d errored", report.Failed, report.Errored)}
		}
		if err := f.encode(CLIResponse{Status: status, Data: report, Error: cliErr, TraceID: report.RunID}); err != nil {
			return err
		}
	} else if err := report.WriteText(f.Writer); err != nil {
		return err
	}

	if sinkErr != nil {
		return &ExitError{Code: ExitCommandError, Message: "failed to write trace output", Err: sinkErr}
	}
	if !report.OK() {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d failed, %d errored", report.Failed, report.Errored), reported: true}
	}
	return nil
}

// openGateway dials the configured server or builds an in-process world.
func (o *RunOptions) openGateway(ctx context.Context, logger *slog.Logger) (gateway.Gateway, func(), error) {
	if o.Server == "" {
		worldOpts, err := o.cfg.Sim.WorldOptions()
		if err != nil {
			return nil, nil, err
		}
		worldOpts = append(worldOpts, gateway.WithWorldLogger(logger.With("component", "world")))
		logger.Debug("using in-process world", "rules", o.cfg.Sim.Rules)
		return gateway.NewWorld(worldOpts...), func() {}, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	c, err := gateway.Dial(dialCtx, o.Server, gateway.WithClientLogger(logger.With("component", "client")))
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("connected", "server", o.Server, "world_tick", c.LastTick())
	return c, func() {
		if err := c.Close(); err != nil {
			logger.Debug("close connection", "error", err)
		}
	}, nil
}

// openSinks opens the journal and trace DB when configured. The returned
// store, if any, also receives the final report.
func (o *RunOptions) openSinks(logger *slog.Logger) (trace.Recorder, func() error, *store.Store, error) {
	var (
		recorders trace.Multi
		closers   []func() error
		st        *store.Store
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if o.Journal != "" {
		w, err := journal.Create(o.Journal)
		if err != nil {
			return nil, nil, nil, err
		}
		recorders = append(recorders, w)
		closers = append(closers, w.Close)
		logger.Debug("journaling trace", "path", o.Journal)
	}
	if o.TraceDB != "" {
		s, err := store.Open(o.TraceDB)
		if err != nil {
			_ = closeAll()
			return nil, nil, nil, err
		}
		st = s
		recorders = append(recorders, s)
		closers = append(closers, s.Close)
		logger.Debug("recording trace", "db", o.TraceDB)
	}

	if len(recorders) == 0 {
		return trace.Discard, closeAll, nil, nil
	}
	return recorders, closeAll, st, nil
}
