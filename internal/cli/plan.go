package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flint/internal/harness"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Recursive bool
	Tags      []string
}

// PlannedTest is one entry of the printed plan.
type PlannedTest struct {
	Name         string   `json:"name"`
	File         string   `json:"file"`
	Dependencies []string `json:"dependencies,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	LastTick     int      `json:"last_tick"`
	Mutations    int      `json:"mutations"`
	Checks       int      `json:"checks"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <path>",
		Short: "Print the order tests would run in",
		Long: `Print the dependency-ordered list of tests under a path. Tests with no
ordering constraint between them keep file order.

Examples:
  flint plan ./tests
  flint plan ./tests --tag redstone --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().StringSliceVarP(&opts.Tags, "tag", "t", nil, "only tests carrying one of these tags")

	return cmd
}

func runPlan(opts *PlanOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	recursive := opts.Recursive || (!cmd.Flags().Changed("recursive") && opts.cfg.Recursive)
	tags := opts.Tags
	if !cmd.Flags().Changed("tag") {
		tags = opts.cfg.Tags
	}

	tests, err := loadAll(f, path, recursive)
	if err != nil {
		return err
	}
	plan, err := harness.Plan(harness.Select(tests, tags))
	if err != nil {
		return reportIssues(f, ExitCommandError, ErrCodePlan, "failed to plan tests", []Issue{issueFor("", "", err)})
	}

	schedules, err := harness.Compile(plan)
	if err != nil {
		return reportIssues(f, ExitCommandError, ErrCodeCompile, "failed to compile tests", []Issue{issueFor("", "", err)})
	}

	out := make([]PlannedTest, len(plan.Tests))
	for i, t := range plan.Tests {
		mutations, checks := schedules[i].Counts()
		out[i] = PlannedTest{
			Name:         t.Name,
			File:         t.Source,
			Dependencies: t.Dependencies,
			Tags:         t.Tags,
			LastTick:     schedules[i].LastTick(),
			Mutations:    mutations,
			Checks:       checks,
		}
	}

	if f.JSON() {
		return f.Success(map[string]any{"tests": out})
	}
	for i, t := range out {
		fmt.Fprintf(f.Writer, "%3d. %s (%s) ticks 0-%d, %d mutations, %d checks\n", i+1, t.Name, t.File, t.LastTick, t.Mutations, t.Checks)
		if len(t.Dependencies) > 0 {
			fmt.Fprintf(f.Writer, "     after: %s\n", strings.Join(t.Dependencies, ", "))
		}
	}
	return nil
}
