package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flint/internal/harness"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Recursive bool
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Tests  int     `json:"tests"`
	Issues []Issue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Check test files without touching a server",
		Long: `Load, compile and plan every test under a path without connecting
to a server. Every problem is reported, not just the first.

Exit codes:
  0 - All tests valid
  1 - One or more problems found
  2 - Command error (path not found, no test files)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "descend into subdirectories")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	recursive := opts.Recursive || (!cmd.Flags().Changed("recursive") && opts.cfg.Recursive)

	files, err := discover(f, path, recursive)
	if err != nil {
		return err
	}

	tests, issues := LoadTests(files)
	issues = append(issues, CompileIssues(tests)...)
	if _, err := harness.Plan(tests); err != nil {
		issues = append(issues, issueFor("", "", err))
	}

	if len(issues) > 0 {
		return reportIssues(f, ExitFailure, issues[0].Code, "validation failed", issues)
	}

	if f.JSON() {
		return f.Success(ValidationResult{Valid: true, Tests: len(tests)})
	}
	fmt.Fprintf(f.Writer, "✓ %d test(s) valid\n", len(tests))
	return nil
}
