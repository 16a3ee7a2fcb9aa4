package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/apiquery/internal/document"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Once bool // plan once and exit
}

// OutcomeSummary is the JSON form of one re-planned query.
type OutcomeSummary struct {
	Endpoint    string `json:"endpoint"`
	Query       string `json:"query"`
	Fingerprint string `json:"fingerprint"`
	Changed     bool   `json:"changed"`
	Plan        string `json:"plan,omitempty"`
	Errors      any    `json:"errors,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <endpoint?query-string>...",
		Short: "Re-plan queries whenever the schema or configuration changes",
		Long: `Plan every given request, then watch the configuration and schema files
and plan them again after each change. Queries whose plan or errors changed are
marked; a reload that fails is logged and the previous result is kept.

The set of watched files is fixed at startup.

Exit codes:
  0 - Stopped by signal, or planned once with --once
  2 - Configuration or schema error on the first load

Examples:
  apiquery watch "blogs?sort=title" "blogs?include=posts"
  apiquery watch --schema schema.cue "blogs?filter=has(posts)" --once`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "plan once and exit")

	return cmd
}

func runWatch(opts *WatchOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	queries := make([]watch.Query, len(args))
	for i, arg := range args {
		endpoint, raw := requestArgs([]string{arg})
		queries[i] = watch.Query{Endpoint: endpoint, Raw: raw}
	}
	reloader := watch.NewReloader(opts.Config, opts.Schema, queries, logger)

	outcomes, err := reloader.Reload()
	if err != nil {
		return commandError(f, ErrCodeSchema, "planning queries", err)
	}
	if err := writeOutcomes(f, outcomes); err != nil {
		return err
	}
	if opts.Once {
		return nil
	}

	files, err := reloader.Files()
	if err != nil {
		return commandError(f, ErrCodeConfig, "resolving watched files", err)
	}

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := watch.New(files, watch.WithLogger(logger))
	err = w.Run(ctx, func(context.Context) error {
		outcomes, err := reloader.Reload()
		if err != nil {
			return err
		}
		return writeOutcomes(f, outcomes)
	})
	if err != nil {
		return commandError(f, ErrCodeGeneric, "watching files", err)
	}
	return nil
}

func summarizeOutcome(out watch.Outcome) OutcomeSummary {
	s := OutcomeSummary{
		Endpoint:    out.Query.Endpoint,
		Query:       out.Query.Raw,
		Fingerprint: out.Fingerprint,
		Changed:     out.Changed,
	}
	if out.Plan != nil {
		s.Plan = plan.Format(out.Plan)
	}
	if out.Errors != nil {
		s.Errors = document.Errors(out.Errors)["errors"]
	}
	return s
}

// writeOutcomes prints one reload. Text output shows changed queries only.
func writeOutcomes(f *OutputFormatter, outcomes []watch.Outcome) error {
	if f.Format == "json" {
		summaries := make([]OutcomeSummary, len(outcomes))
		for i, out := range outcomes {
			summaries[i] = summarizeOutcome(out)
		}
		return f.Success(summaries)
	}

	unchanged := 0
	for _, out := range outcomes {
		if !out.Changed {
			unchanged++
			continue
		}
		fmt.Fprintf(f.Writer, "== %s?%s\n", out.Query.Endpoint, out.Query.Raw)
		if out.Plan != nil {
			fmt.Fprint(f.Writer, plan.Format(out.Plan))
			continue
		}
		for _, e := range out.Errors.Errors {
			fmt.Fprintf(f.Writer, "error: %s: %s\n", e.Title, e.Detail)
		}
	}
	if unchanged > 0 {
		fmt.Fprintf(f.Writer, "(%d unchanged)\n", unchanged)
	}
	return nil
}
