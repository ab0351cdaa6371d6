package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/flint/internal/engine"
	"github.com/roach88/flint/internal/journal"
	"github.com/roach88/flint/internal/store"
	"github.com/roach88/flint/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Test     string
	Runs     bool
}

// TraceResult holds one run's recorded history.
type TraceResult struct {
	RunID    string           `json:"run_id,omitempty"`
	Verdicts []engine.Verdict `json:"verdicts,omitempty"`
	Events   []trace.Event    `json:"events"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [journal]",
		Short: "Print a recorded run",
		Long: `Print the trace of a run, either from a journal written with
--journal or from a trace database written with --trace-db.

From a database the latest run is shown unless --run is given; --runs
lists every stored run.

Examples:
  flint trace out/run.jsonl.zst
  flint trace --db out/trace.db
  flint trace --db out/trace.db --run 0192f5c4-... --test lever_toggle
  flint trace --db out/trace.db --runs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to a trace database")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID (default latest)")
	cmd.Flags().StringVar(&opts.Test, "test", "", "only events of this test")
	cmd.Flags().BoolVar(&opts.Runs, "runs", false, "list stored runs")

	return cmd
}

func runTrace(opts *TraceOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	switch {
	case len(args) == 1 && opts.Database != "":
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "give either a journal or --db, not both", nil)
	case len(args) == 1:
		return traceJournal(opts, f, args[0])
	case opts.Database != "":
		return traceDB(opts, f, cmd)
	default:
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "nothing to trace: give a journal path or --db", nil)
	}
}

func traceJournal(opts *TraceOptions, f *OutputFormatter, path string) error {
	events := []trace.Event{}
	err := journal.Scan(path, func(ev trace.Event) error {
		if opts.RunID != "" && ev.RunID != opts.RunID {
			return nil
		}
		if opts.Test == "" || ev.Test == opts.Test {
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to read journal", err)
	}

	result := TraceResult{Events: events}
	if len(events) > 0 {
		result.RunID = events[0].RunID
	}
	return outputTrace(f, result)
}

func traceDB(opts *TraceOptions, f *OutputFormatter, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "failed to open database", err)
	}
	defer st.Close()

	if opts.Runs {
		runs, err := st.Runs(ctx)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to list runs", err)
		}
		if f.JSON() {
			return f.Success(map[string]any{"runs": runs})
		}
		if len(runs) == 0 {
			fmt.Fprintln(f.Writer, "No runs recorded")
		}
		for _, r := range runs {
			fmt.Fprintf(f.Writer, "%s  %d passed, %d failed, %d errored\n", r.ID, r.Passed, r.Failed, r.Errored)
		}
		return nil
	}

	runID := opts.RunID
	if runID == "" {
		runID, err = st.LatestRun(ctx)
		if errors.Is(err, store.ErrRunNotFound) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, "no runs recorded in "+opts.Database, nil)
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to find latest run", err)
		}
	}

	verdicts, err := st.Verdicts(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "run not found: "+runID, nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to read verdicts", err)
	}
	events, err := st.Events(ctx, runID, opts.Test)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to read events", err)
	}

	if opts.Test != "" {
		kept := verdicts[:0]
		for _, v := range verdicts {
			if v.Test == opts.Test {
				kept = append(kept, v)
			}
		}
		verdicts = kept
	}
	return outputTrace(f, TraceResult{RunID: runID, Verdicts: verdicts, Events: events})
}

func outputTrace(f *OutputFormatter, result TraceResult) error {
	if f.JSON() {
		return f.encode(CLIResponse{Status: "ok", Data: result, TraceID: result.RunID})
	}

	if result.RunID != "" {
		fmt.Fprintf(f.Writer, "run %s\n", result.RunID)
	}
	if len(result.Events) == 0 {
		fmt.Fprintln(f.Writer, "No events found")
	}
	for _, ev := range result.Events {
		writeEvent(f.Writer, ev)
	}
	if len(result.Verdicts) > 0 {
		fmt.Fprintln(f.Writer)
		for _, v := range result.Verdicts {
			fmt.Fprintf(f.Writer, "%-7s %s (%d checks)\n", v.Status, v.Test, v.Checks)
		}
	}
	return nil
}

// writeEvent prints one event per line: seq, test, tick, kind, then the
// detail and any error.
func writeEvent(w io.Writer, ev trace.Event) {
	tick := fmt.Sprintf("tick %d", ev.Tick)
	if ev.Tick < 0 {
		tick = "-"
	}
	status := "ok"
	if !ev.OK {
		status = "FAIL"
	}
	line := fmt.Sprintf("%5d  %s  %s  %s %s", ev.Seq, ev.Test, tick, ev.Kind, status)
	if ev.Detail != "" {
		line += "  " + ev.Detail
	}
	if ev.Error != "" {
		line += ": " + ev.Error
	}
	fmt.Fprintln(w, line)
}
