package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/apiquery/internal/dataset"
	"github.com/roach88/apiquery/internal/document"
	"github.com/roach88/apiquery/internal/memsource"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Data string // dataset file, defaults to the configuration's data
	DB   string // SQLite database path
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <endpoint> [query-string]",
		Short: "Run a query string against a dataset or database",
		Long: `Compile the query string of one request and execute it, printing the
JSON:API result document.

The plan runs in memory over the dataset given by --data (or the data entry of
the configuration). With --db it runs against a SQLite database instead; when
--data is also given, the dataset is imported into the database first.

Exit codes:
  0 - Query executed
  1 - Query string rejected
  2 - Configuration, schema, data or database error

Examples:
  apiquery query blogs "include=posts&fields[blogs]=title" --data data.yaml
  apiquery query blogs "sort=-title" --db blog.db
  apiquery query blogs --db blog.db --data data.yaml`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "dataset file (.yaml, .yml or .json)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database path")

	return cmd
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	env, err := loadEnvironment(opts.RootOptions, cmd, f)
	if err != nil {
		return err
	}
	q, err := env.plan(f, args)
	if err != nil {
		return err
	}

	dataPath := opts.Data
	if dataPath == "" && opts.DB == "" {
		dataPath = env.config.Data
	}
	var data *dataset.Dataset
	if dataPath != "" {
		f.VerboseLog("Loading data %s", dataPath)
		data, err = dataset.Load(env.registry, dataPath)
		if err != nil {
			return commandError(f, ErrCodeData, "loading data", err)
		}
	}

	var provider plan.Provider
	switch {
	case opts.DB != "":
		st, err := store.Open(opts.DB, env.registry, store.WithLogger(env.logger))
		if err != nil {
			return commandError(f, ErrCodeStore, "opening database", err)
		}
		defer st.Close()
		if data != nil {
			if err := st.Import(cmd.Context(), data); err != nil {
				return commandError(f, ErrCodeData, "importing data", err)
			}
		}
		provider = st
	case data != nil:
		provider = memsource.New(data, memsource.WithLogger(env.logger))
	default:
		return commandError(f, ErrCodeNotFound, "no data: set --data, --db or data in "+opts.Config, nil)
	}

	rows, err := provider.Execute(cmd.Context(), q)
	if err != nil {
		return commandError(f, ErrCodeStore, "executing query", err)
	}
	f.VerboseLog("%d row(s)", len(rows))
	return f.Document(document.Data(rows))
}
