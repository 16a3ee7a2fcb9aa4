package querysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/resource"
)

// rootAlias is the table alias of the queried collection.
const rootAlias = `"p0"`

// Statement is a compiled SELECT. Its result columns are _type, id and then
// Attributes in order.
type Statement struct {
	SQL        string
	Args       []any
	Attributes []string
}

// Compiler compiles plans against the storage layout of a registry.
//
// A Compiler holds no per-query state and is safe for concurrent use.
type Compiler struct {
	reg *resource.Registry
}

// NewCompiler creates a Compiler for reg.
func NewCompiler(reg *resource.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// Select compiles the top level of q: filter, order, page window and the
// projected attribute columns. Includes are compiled separately with
// SelectRelated, once per parent object.
func (c *Compiler) Select(q *plan.Query) (*Statement, error) {
	rt, err := c.resource(q.Resource)
	if err != nil {
		return nil, err
	}
	b := sq.Select().From(Table(rt) + " AS " + rootAlias)
	return c.build(q, rt, b, rootAlias+"._seq")
}

// SelectRelated compiles q over the objects sourceID refers to through rel.
// Ties are broken by the order of the relationship's ids.
func (c *Compiler) SelectRelated(q *plan.Query, rel *resource.Relationship, sourceID string) (*Statement, error) {
	rt, err := c.resource(q.Resource)
	if err != nil {
		return nil, err
	}
	b := sq.Select().
		From(LinkTable(rel) + ` AS "l"`).
		Join(Table(rt) + " AS " + rootAlias + " ON " + rootAlias + `.id = "l".target_id`).
		Where(sq.Eq{`"l".source_id`: sourceID})
	return c.build(q, rt, b, `"l".ordinal`)
}

// RelatedIDs compiles the lookup of the ids sourceID refers to through rel,
// in stored order.
func (c *Compiler) RelatedIDs(rel *resource.Relationship, sourceID string) (string, []any, error) {
	return sq.Select("target_id").
		From(LinkTable(rel)).
		Where(sq.Eq{"source_id": sourceID}).
		OrderBy("ordinal").
		ToSql()
}

func (c *Compiler) build(q *plan.Query, rt *resource.Type, b sq.SelectBuilder, tiebreak string) (*Statement, error) {
	stmt := &Statement{}
	b = b.Columns(rootAlias+"._type", rootAlias+".id")

	cols, err := Columns(rt.Root())
	if err != nil {
		return nil, err
	}
	stored := make(map[string]bool, len(cols))
	for _, a := range cols {
		stored[a.PublicName()] = true
	}
	for _, name := range q.Projection.Attributes {
		if stored[name] {
			b = b.Column(rootAlias + "." + Quote(name))
			stmt.Attributes = append(stmt.Attributes, name)
		}
	}

	b = b.Where(sq.Eq{rootAlias + "._type": q.Types})

	ec := newExprCompiler(c.reg)
	if q.Filter != nil {
		ec.bind(q.Filter, rootAlias)
		filter, err := ec.expr(q.Filter.Body)
		if err != nil {
			return nil, fmt.Errorf("compile filter: %w", err)
		}
		b = b.Where(filter)
	}

	for _, o := range q.Order {
		ec.bind(o.Key, rootAlias)
		key, err := ec.expr(o.Key.Body)
		if err != nil {
			return nil, fmt.Errorf("compile order: %w", err)
		}
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		b = b.OrderByClause(sq.Expr("? "+dir, key))
	}
	b = b.OrderBy(tiebreak)

	switch {
	case q.Take > 0:
		b = b.Limit(uint64(q.Take))
		if q.Skip > 0 {
			b = b.Offset(uint64(q.Skip))
		}
	case q.Skip > 0:
		b = b.Suffix("LIMIT -1 OFFSET ?", q.Skip)
	}

	stmt.SQL, stmt.Args, err = b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql: %w", err)
	}
	return stmt, nil
}

func (c *Compiler) resource(name string) (*resource.Type, error) {
	rt, ok := c.reg.Type(name)
	if !ok {
		return nil, fmt.Errorf("querysql: unknown resource type %q", name)
	}
	return rt, nil
}

// Relationship finds the relationship named field on resourceName or,
// failing that, on the first of its derived types that declares it.
func (c *Compiler) Relationship(resourceName, field string) (*resource.Relationship, error) {
	rt, err := c.resource(resourceName)
	if err != nil {
		return nil, err
	}
	for _, d := range rt.Descendants() {
		if rel, ok := d.Relationship(field); ok {
			return rel, nil
		}
	}
	return nil, fmt.Errorf("querysql: resource type %q has no relationship %q", resourceName, field)
}

// Explain renders the statements q compiles to, includes indented below
// their parent. Include statements bind the parent id as their first
// argument.
func (c *Compiler) Explain(q *plan.Query) (string, error) {
	var sb strings.Builder
	stmt, err := c.Select(q)
	if err != nil {
		return "", err
	}
	writeStatement(&sb, "", q.Resource, stmt)
	if err := c.explainIncludes(&sb, q, "  "); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (c *Compiler) explainIncludes(sb *strings.Builder, q *plan.Query, indent string) error {
	for _, inc := range q.Includes {
		rel, err := c.Relationship(q.Resource, inc.Relationship)
		if err != nil {
			return err
		}
		stmt, err := c.SelectRelated(inc.Query, rel, "?")
		if err != nil {
			return err
		}
		stmt.Args[0] = "<parent id>"
		writeStatement(sb, indent, q.Resource+"."+inc.Relationship, stmt)
		if err := c.explainIncludes(sb, inc.Query, indent+"  "); err != nil {
			return err
		}
	}
	return nil
}

func writeStatement(sb *strings.Builder, indent, name string, stmt *Statement) {
	fmt.Fprintf(sb, "%s-- %s\n", indent, name)
	fmt.Fprintf(sb, "%s%s\n", indent, stmt.SQL)
	fmt.Fprintf(sb, "%s-- args: %v\n", indent, stmt.Args)
}
