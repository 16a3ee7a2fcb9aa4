// Package querysql compiles plans to parameterised SQLite SQL.
//
// Storage layout, generated from a resource registry:
//
//   - one table per root resource type, named after it, holding the objects
//     of every type in the hierarchy. Columns: _seq (insertion order),
//     _type (concrete type), id, then one column per attribute declared
//     anywhere in the hierarchy.
//   - one link table per declared relationship, named "<type>.<relationship>",
//     with columns source_id, target_id and ordinal.
//
// Every statement ends its ORDER BY with a deterministic tiebreaker:
// _seq for collections, ordinal for related objects. All values are bound
// as parameters, never interpolated.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/value"
)

// Names of the scalar functions the store registers on every connection.
// SQLite's built-in upper and lower only fold ASCII.
const (
	FuncUpper = "apiquery_upper"
	FuncLower = "apiquery_lower"
)

// Quote quotes an SQL identifier.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Table returns the quoted table of rt's hierarchy.
func Table(rt *resource.Type) string {
	return Quote(rt.Root().PublicName())
}

// LinkTable returns the quoted link table of rel.
func LinkTable(rel *resource.Relationship) string {
	return linkTable(rel.DeclaringType().PublicName(), rel.PublicName())
}

func linkTable(declaring, field string) string {
	return Quote(declaring + "." + field)
}

// Columns returns the attribute columns of root's hierarchy table in
// declaration order, "id" excluded. Attributes with the same name in
// sibling types share a column and must have the same value type.
func Columns(root *resource.Type) ([]*resource.Attribute, error) {
	var cols []*resource.Attribute
	seen := make(map[string]*resource.Attribute)
	for _, t := range root.Descendants() {
		for _, a := range t.Attributes() {
			name := a.PublicName()
			if name == "id" {
				continue
			}
			prev, ok := seen[name]
			switch {
			case !ok:
				seen[name] = a
				cols = append(cols, a)
			case prev.ValueType() != a.ValueType():
				return nil, &resource.SchemaError{Type: t.PublicName(), Field: name,
					Message: fmt.Sprintf("column type %s conflicts with %s.%s of type %s",
						a.ValueType(), prev.DeclaringType().PublicName(), name, prev.ValueType())}
			}
		}
	}
	return cols, nil
}

func columnType(t value.Type) string {
	switch t {
	case value.TypeInt, value.TypeDuration:
		return "INTEGER"
	case value.TypeFloat:
		return "REAL"
	case value.TypeBool:
		return "BOOLEAN"
	default:
		// Times are stored as fixed-width UTC text, see value.SQLTimeLayout.
		return "TEXT"
	}
}

// Schema returns the DDL statements creating the tables of reg. The
// statements are idempotent.
func Schema(reg *resource.Registry) ([]string, error) {
	var stmts []string
	for _, rt := range reg.Types() {
		if rt.Base() != nil {
			continue
		}
		cols, err := Columns(rt)
		if err != nil {
			return nil, err
		}
		defs := []string{
			"_seq INTEGER PRIMARY KEY",
			"_type TEXT NOT NULL",
			"id TEXT NOT NULL UNIQUE",
		}
		for _, a := range cols {
			defs = append(defs, Quote(a.PublicName())+" "+columnType(a.ValueType()))
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
			Table(rt), strings.Join(defs, ",\n\t")))
	}

	for _, rt := range reg.Types() {
		for _, rel := range rt.Relationships() {
			if rel.DeclaringType() != rt {
				continue
			}
			stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
				LinkTable(rel), strings.Join([]string{
					"source_id TEXT NOT NULL",
					"target_id TEXT NOT NULL",
					"ordinal INTEGER NOT NULL",
					"PRIMARY KEY (source_id, ordinal)",
				}, ",\n\t")))
		}
	}
	return stmts, nil
}

// Tables returns the quoted names of every table Schema creates, link
// tables last.
func Tables(reg *resource.Registry) []string {
	var tables, links []string
	for _, rt := range reg.Types() {
		if rt.Base() == nil {
			tables = append(tables, Table(rt))
		}
		for _, rel := range rt.Relationships() {
			if rel.DeclaringType() == rt {
				links = append(links, LinkTable(rel))
			}
		}
	}
	return append(tables, links...)
}
