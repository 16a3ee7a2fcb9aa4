package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/apiquery/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // rewrite golden files
	Filter string // glob over scenario file names
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios against both the in-memory and the SQLite
provider.

Each scenario file names a schema, a dataset and a list of requests with
their expected ids, included resources or errors. When a golden file exists at
golden/<scenario>.golden next to the scenario, the recorded documents must
match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  apiquery test ./scenarios
  apiquery test ./scenarios --filter "paging*"
  apiquery test ./scenarios --update
  apiquery test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from the current documents")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenario files matching this glob")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(dir); err != nil {
		return commandError(f, ErrCodeNotFound, "scenarios directory not found: "+dir, err)
	}

	suite, err := harness.RunSuite(cmd.Context(), dir,
		harness.SuiteConfig{Pattern: opts.Filter, Update: opts.Update},
		harness.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))
	if err != nil {
		return commandError(f, ErrCodeGeneric, "running scenarios", err)
	}

	if opts.Format == "json" {
		if suite.Failed > 0 {
			if err := f.Error(ErrCodeScenario, failedMessage(suite), suite); err != nil {
				return err
			}
		} else if err := f.Success(suite); err != nil {
			return err
		}
	} else {
		writeSuiteText(f.Writer, suite)
	}

	if suite.Failed > 0 {
		return NewExitError(ExitFailure, failedMessage(suite))
	}
	return nil
}

func failedMessage(suite *harness.Suite) string {
	return fmt.Sprintf("%d of %d scenarios failed", suite.Failed, len(suite.Verdicts))
}

func writeSuiteText(w io.Writer, suite *harness.Suite) {
	if len(suite.Verdicts) == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, v := range suite.Verdicts {
		mark, note := "✓", ""
		if !v.Pass {
			mark = "✗"
		}
		if v.Golden == harness.GoldenUpdated {
			note = " (golden updated)"
		}
		fmt.Fprintf(w, "%s %s%s\n", mark, v.Scenario, note)
		for _, p := range v.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
		if v.Golden == harness.GoldenMismatch {
			fmt.Fprintln(w, "  run with --update to accept the new documents")
		}
	}

	fmt.Fprintf(w, "\n%d scenarios: %d passed, %d failed\n", len(suite.Verdicts), suite.Passed, suite.Failed)
}
