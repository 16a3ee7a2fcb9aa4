package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/apiquery/internal/resource"
)

// SchemaSummary describes a loaded resource registry.
type SchemaSummary struct {
	Schema string        `json:"schema"`
	Types  []TypeSummary `json:"types"`
}

// TypeSummary describes one resource type with its effective fields.
type TypeSummary struct {
	Name          string                `json:"name"`
	Base          string                `json:"base,omitempty"`
	Derived       []string              `json:"derived,omitempty"`
	Attributes    []AttributeSummary    `json:"attributes"`
	Relationships []RelationshipSummary `json:"relationships"`
}

// AttributeSummary describes an attribute.
type AttributeSummary struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Nullable     bool   `json:"nullable,omitempty"`
	Capabilities string `json:"capabilities"`
}

// RelationshipSummary describes a relationship.
type RelationshipSummary struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Target       string `json:"target"`
	Capabilities string `json:"capabilities"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Load the schema and summarize its resource types",
		Long: `Load and freeze the resource schema, check the configured endpoints
against it, and print every resource type with its effective attributes and
relationships.

Exit codes:
  0 - Schema is valid
  2 - Configuration or schema error

Examples:
  apiquery schema --schema schema.yaml
  apiquery schema --config apiquery.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, cmd)
		},
	}
}

func runSchema(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	env, err := loadEnvironment(opts, cmd, f)
	if err != nil {
		return err
	}

	summary := summarize(env.schemaPath, env.registry)
	if opts.Format == "json" {
		return f.Success(summary)
	}
	writeSchemaText(f.Writer, summary)
	return nil
}

func summarize(path string, reg *resource.Registry) SchemaSummary {
	summary := SchemaSummary{Schema: path, Types: []TypeSummary{}}
	for _, t := range reg.Types() {
		ts := TypeSummary{
			Name:          t.PublicName(),
			Attributes:    []AttributeSummary{},
			Relationships: []RelationshipSummary{},
		}
		if base := t.Base(); base != nil {
			ts.Base = base.PublicName()
		}
		for _, d := range t.DirectlyDerived() {
			ts.Derived = append(ts.Derived, d.PublicName())
		}
		for _, a := range t.Attributes() {
			ts.Attributes = append(ts.Attributes, AttributeSummary{
				Name:         a.PublicName(),
				Type:         a.ValueType().String(),
				Nullable:     a.Nullable(),
				Capabilities: a.Capabilities().String(),
			})
		}
		for _, r := range t.Relationships() {
			ts.Relationships = append(ts.Relationships, RelationshipSummary{
				Name:         r.PublicName(),
				Kind:         r.Kind().String(),
				Target:       r.Target().PublicName(),
				Capabilities: r.Capabilities().String(),
			})
		}
		summary.Types = append(summary.Types, ts)
	}
	return summary
}

func writeSchemaText(w io.Writer, s SchemaSummary) {
	fmt.Fprintf(w, "Schema: %s (%d types)\n", s.Schema, len(s.Types))
	for _, t := range s.Types {
		fmt.Fprintln(w)
		if t.Base != "" {
			fmt.Fprintf(w, "%s : %s\n", t.Name, t.Base)
		} else {
			fmt.Fprintln(w, t.Name)
		}
		for _, a := range t.Attributes {
			typ := a.Type
			if a.Nullable {
				typ += "?"
			}
			fmt.Fprintf(w, "  %-20s %-10s [%s]\n", a.Name, typ, a.Capabilities)
		}
		for _, r := range t.Relationships {
			fmt.Fprintf(w, "  %-20s %s -> %s [%s]\n", r.Name, r.Kind, r.Target, r.Capabilities)
		}
	}
}
