package querysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/value"
)

// exprCompiler translates plan expressions into SQL fragments.
//
// Predicates compile to expressions that are never NULL: comparisons are
// wrapped in COALESCE(..., 0), so NOT behaves as it does in memory.
// Each lambda parameter is a table alias named after the parameter.
type exprCompiler struct {
	reg     *resource.Registry
	aliases map[*plan.Param]string
}

func newExprCompiler(reg *resource.Registry) *exprCompiler {
	return &exprCompiler{reg: reg, aliases: make(map[*plan.Param]string)}
}

func (c *exprCompiler) bind(l *plan.Lambda, alias string) {
	c.aliases[l.Param] = alias
}

func (c *exprCompiler) alias(p *plan.Param) (string, error) {
	a, ok := c.aliases[p]
	if !ok {
		return "", fmt.Errorf("querysql: parameter %s is not bound", p.Name)
	}
	return a, nil
}

func (c *exprCompiler) table(resourceName string) (string, error) {
	rt, ok := c.reg.Type(resourceName)
	if !ok {
		return "", fmt.Errorf("querysql: unknown resource type %q", resourceName)
	}
	return Table(rt), nil
}

// id compiles the id of the object e evaluates to. A null to-one
// relationship yields NULL.
func (c *exprCompiler) id(e plan.Expr) (sq.Sqlizer, error) {
	switch n := e.(type) {
	case *plan.Param:
		a, err := c.alias(n)
		if err != nil {
			return nil, err
		}
		return sq.Expr(a + ".id"), nil
	case *plan.Member:
		if n.Kind != plan.MemberToOne {
			return nil, fmt.Errorf("querysql: %s is not a to-one relationship", n)
		}
		owner, err := c.id(n.Target)
		if err != nil {
			return nil, err
		}
		return sq.Expr("(SELECT target_id FROM "+linkTable(n.Declaring, n.Field)+" WHERE source_id = ?)", owner), nil
	}
	return nil, fmt.Errorf("querysql: %s is not an object expression", e)
}

// column compiles a column of the object e evaluates to.
func (c *exprCompiler) column(e plan.Expr, column string) (sq.Sqlizer, error) {
	switch n := e.(type) {
	case *plan.Param:
		a, err := c.alias(n)
		if err != nil {
			return nil, err
		}
		return sq.Expr(a + "." + column), nil
	case *plan.Member:
		if n.Kind != plan.MemberToOne {
			return nil, fmt.Errorf("querysql: %s is not a to-one relationship", n)
		}
		table, err := c.table(n.Related)
		if err != nil {
			return nil, err
		}
		id, err := c.id(n)
		if err != nil {
			return nil, err
		}
		return sq.Expr("(SELECT "+column+" FROM "+table+" WHERE id = ?)", id), nil
	}
	return nil, fmt.Errorf("querysql: %s is not an object expression", e)
}

func (c *exprCompiler) expr(e plan.Expr) (sq.Sqlizer, error) {
	switch n := e.(type) {
	case *plan.Const:
		return sq.Expr("?", value.ToSQL(n.Value)), nil

	case *plan.Member:
		if n.Kind != plan.MemberAttribute {
			return nil, fmt.Errorf("querysql: %s is not an attribute", n)
		}
		if n.Field == "id" {
			return c.id(n.Target)
		}
		return c.column(n.Target, Quote(n.Field))

	case *plan.Compare:
		return c.compare(n)

	case *plan.Logical:
		return c.logical(n)

	case *plan.Not:
		operand, err := c.expr(n.Operand)
		if err != nil {
			return nil, err
		}
		return sq.Expr("(NOT ?)", operand), nil

	case *plan.StringMatch:
		target, err := c.expr(n.Target)
		if err != nil {
			return nil, err
		}
		return sq.Expr("COALESCE(? GLOB ?, 0)", target, globPattern(n.Kind, n.Pattern)), nil

	case *plan.In:
		if len(n.Values) == 0 {
			return sq.Expr("0"), nil
		}
		target, err := c.expr(n.Target)
		if err != nil {
			return nil, err
		}
		args := []any{target}
		for _, v := range n.Values {
			args = append(args, value.ToSQL(v))
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(n.Values)), ", ")
		return sq.Expr("COALESCE(? IN ("+marks+"), 0)", args...), nil

	case *plan.Aggregate:
		return c.aggregate(n)

	case *plan.TypeIs:
		typ, err := c.column(n.Target, "_type")
		if err != nil {
			return nil, err
		}
		args := []any{typ}
		for _, t := range n.Types {
			args = append(args, t)
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(n.Types)), ", ")
		return sq.Expr("COALESCE(? IN ("+marks+"), 0)", args...), nil

	case *plan.Call:
		return c.call(n)
	}
	return nil, fmt.Errorf("querysql: cannot compile %T", e)
}

var sqlOps = map[plan.CompareOp]string{
	plan.Eq: "=",
	plan.Ne: "<>",
	plan.Gt: ">",
	plan.Ge: ">=",
	plan.Lt: "<",
	plan.Le: "<=",
}

func (c *exprCompiler) compare(n *plan.Compare) (sq.Sqlizer, error) {
	op, ok := sqlOps[n.Op]
	if !ok {
		return nil, fmt.Errorf("querysql: unknown comparison %q", n.Op)
	}

	if plan.IsNullConst(n.Left) || plan.IsNullConst(n.Right) {
		other := n.Left
		if plan.IsNullConst(n.Left) {
			other = n.Right
		}
		if plan.IsNullConst(other) {
			if n.Op == plan.Eq {
				return sq.Expr("1"), nil
			}
			return sq.Expr("0"), nil
		}
		operand, err := c.expr(other)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case plan.Eq:
			return sq.Expr("(? IS NULL)", operand), nil
		case plan.Ne:
			return sq.Expr("(? IS NOT NULL)", operand), nil
		}
		return sq.Expr("0"), nil
	}

	left, err := c.expr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.expr(n.Right)
	if err != nil {
		return nil, err
	}
	return sq.Expr("COALESCE(? "+op+" ?, 0)", left, right), nil
}

func (c *exprCompiler) logical(n *plan.Logical) (sq.Sqlizer, error) {
	parts := make([]sq.Sqlizer, len(n.Operands))
	for i, o := range n.Operands {
		p, err := c.expr(o)
		if err != nil {
			return nil, err
		}
		parts[i] = p
	}
	if n.Op == plan.Or {
		return sq.Or(parts), nil
	}
	return sq.And(parts), nil
}

// aggregate compiles a correlated subquery over the link table of the
// source relationship.
func (c *exprCompiler) aggregate(n *plan.Aggregate) (sq.Sqlizer, error) {
	src := n.Source
	owner, err := c.id(src.Target)
	if err != nil {
		return nil, err
	}
	link := linkTable(src.Declaring, src.Field)

	if n.Lambda == nil {
		sub := sq.Select().From(link).Where(sq.Expr("source_id = ?", owner))
		switch n.Op {
		case plan.Any:
			return sq.Expr("EXISTS (?)", sub.Column("1")), nil
		case plan.Count:
			return sq.Expr("(?)", sub.Column("COUNT(*)")), nil
		}
		return nil, fmt.Errorf("querysql: %s requires a selector", n.Op)
	}

	table, err := c.table(src.Related)
	if err != nil {
		return nil, err
	}
	alias := Quote(n.Lambda.Param.Name)
	linkAlias := Quote("l_" + n.Lambda.Param.Name)
	c.bind(n.Lambda, alias)
	body, err := c.expr(n.Lambda.Body)
	if err != nil {
		return nil, err
	}
	sub := sq.Select().
		From(link + " AS " + linkAlias).
		Join(table + " AS " + alias + " ON " + alias + ".id = " + linkAlias + ".target_id").
		Where(sq.Expr(linkAlias+".source_id = ?", owner))

	switch n.Op {
	case plan.Any:
		return sq.Expr("EXISTS (?)", sub.Column("1").Where(body)), nil
	case plan.Sum:
		return sq.Expr("(?)", sub.Column(sq.Expr("COALESCE(SUM(?), 0)", body))), nil
	}
	return nil, fmt.Errorf("querysql: %s does not take a selector", n.Op)
}

func (c *exprCompiler) call(n *plan.Call) (sq.Sqlizer, error) {
	if len(n.Args) != 1 {
		return nil, fmt.Errorf("querysql: %s takes one argument", n.Func)
	}
	arg, err := c.expr(n.Args[0])
	if err != nil {
		return nil, err
	}
	switch n.Func {
	case plan.Upper:
		return sq.Expr(FuncUpper+"(?)", arg), nil
	case plan.Lower:
		return sq.Expr(FuncLower+"(?)", arg), nil
	case plan.Length:
		return sq.Expr("length(?)", arg), nil
	}
	return nil, fmt.Errorf("querysql: unknown function %q", n.Func)
}

// globPattern builds a case-sensitive GLOB pattern matching text
// literally. LIKE is not used since SQLite folds ASCII case in LIKE.
func globPattern(kind plan.MatchKind, text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '*', '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	switch kind {
	case plan.StartsWith:
		return b.String() + "*"
	case plan.EndsWith:
		return "*" + b.String()
	default:
		return "*" + b.String() + "*"
	}
}
