package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/apiquery/internal/constraint"
)

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <endpoint> [query-string]",
		Short: "Read a query string into its validated constraints",
		Long: `Read the query string parameters of one request and print the resulting
constraint set: the filter, sort and page of every scope, the include tree and
the sparse fieldsets. Expressions are printed in their normalized query string
form.

A rejected query string prints its JSON:API error document.

Exit codes:
  0 - Query string is valid
  1 - Query string rejected
  2 - Configuration, schema or endpoint error

Examples:
  apiquery parse blogs "filter=equals(title,'Technology')&include=posts"
  apiquery parse "blogs?sort=-title&page[size]=5"`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, args, cmd)
		},
	}
}

func runParse(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	env, err := loadEnvironment(opts, cmd, f)
	if err != nil {
		return err
	}
	set, err := env.read(f, args)
	if err != nil {
		return err
	}
	return f.Document(setDocument(set))
}

// setDocument renders a constraint set as a JSON object.
func setDocument(set *constraint.Set) map[string]any {
	scopes := make([]any, 0, len(set.Scopes))
	for _, sc := range set.Scopes {
		s := map[string]any{"scope": sc.Name()}
		if sc.Filter != nil {
			s["filter"] = sc.Filter.String()
		}
		if sc.Sort != nil {
			s["sort"] = sc.Sort.String()
		}
		if sc.Page != nil {
			s["page"] = map[string]any{"number": sc.Page.Number, "size": sc.Page.Size}
		}
		scopes = append(scopes, s)
	}

	doc := map[string]any{
		"resource": set.Resource.PublicName(),
		"scopes":   scopes,
	}
	if set.Include != nil {
		doc["include"] = set.Include.String()
	}
	if len(set.Fieldsets) > 0 {
		fields := make(map[string]any, len(set.Fieldsets))
		for rt, fs := range set.Fieldsets {
			fields[rt.PublicName()] = fs.String()
		}
		doc["fields"] = fields
	}
	return doc
}
