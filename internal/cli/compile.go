package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/apiquery/internal/document"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	SQL bool // render the SQLite statements instead of the plan
}

// CompileResult is the JSON payload of the compile command.
type CompileResult struct {
	Plan        string `json:"plan"`
	SQL         string `json:"sql,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <endpoint> [query-string]",
		Short: "Compile a query string into a query plan",
		Long: `Read and compile the query string of one request and print the
provider-neutral query plan. With --sql, print the SQLite statements the plan
compiles to instead.

Exit codes:
  0 - Query string compiled
  1 - Query string rejected
  2 - Configuration, schema or endpoint error

Examples:
  apiquery compile blogs "include=posts&sort=-title"
  apiquery compile blogs "filter=has(posts)" --sql`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.SQL, "sql", false, "print the SQLite statements")

	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	env, err := loadEnvironment(opts.RootOptions, cmd, f)
	if err != nil {
		return err
	}
	q, err := env.plan(f, args)
	if err != nil {
		return err
	}

	result := CompileResult{
		Plan:        plan.Format(q),
		Fingerprint: document.Fingerprint(q),
	}
	if opts.SQL {
		result.SQL, err = querysql.NewCompiler(env.registry).Explain(q)
		if err != nil {
			return commandError(f, ErrCodeStore, "compiling SQL", err)
		}
	}

	if opts.Format == "json" {
		return f.Success(result)
	}
	if opts.SQL {
		fmt.Fprint(f.Writer, result.SQL)
	} else {
		fmt.Fprint(f.Writer, result.Plan)
	}
	f.VerboseLog("fingerprint: %s", result.Fingerprint)
	return nil
}
