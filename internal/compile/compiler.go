package compile

import (
	"log/slog"
	"reflect"
	"time"

	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/value"
)

// Clock provides the current time to compilers that need it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ExtensionFunc compiles an AST node type introduced by a parser
// extension. It receives the compiler so it can compile its operands.
type ExtensionFunc func(c *Compiler, node ast.Expression, scope *Scope) (plan.Expr, error)

// Compiler turns validated AST into plan expressions and queries.
//
// A Compiler is immutable after construction and safe for concurrent use.
type Compiler struct {
	extensions map[reflect.Type]ExtensionFunc
	clock      Clock
	logger     *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithExtension registers fn for nodes of the same dynamic type as node.
func WithExtension(node ast.Expression, fn ExtensionFunc) Option {
	return func(c *Compiler) { c.extensions[reflect.TypeOf(node)] = fn }
}

// WithClock sets the clock used by time-relative extensions.
func WithClock(clock Clock) Option {
	return func(c *Compiler) { c.clock = clock }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		extensions: make(map[reflect.Type]ExtensionFunc),
		clock:      systemClock{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clock returns the compiler's clock.
func (c *Compiler) Clock() Clock { return c.clock }

// Filter compiles a filter on rt into a lambda over the root scope.
func (c *Compiler) Filter(expr ast.Expression, rt *resource.Type) (*plan.Lambda, error) {
	scope := NewRootScope(rt)
	body, err := c.Expression(expr, scope)
	if err != nil {
		return nil, err
	}
	if body.Type() != value.TypeBool {
		return nil, invariantf(expr, "filter has type %s", body.Type())
	}
	return scope.Lambda(body), nil
}

// Sort compiles a sort on rt into orderings, earliest first.
func (c *Compiler) Sort(sort *ast.Sort, rt *resource.Type) ([]plan.Ordering, error) {
	scope := NewRootScope(rt)
	out := make([]plan.Ordering, 0, len(sort.Elements))
	for _, elem := range sort.Elements {
		key, err := c.Expression(elem.Target, scope)
		if err != nil {
			return nil, err
		}
		if key.Type() == value.TypeUnknown || isPredicate(key) {
			return nil, invariantf(elem.Target, "sort key is not a scalar")
		}
		out = append(out, plan.Ordering{Key: scope.Lambda(key), Descending: !elem.Ascending})
	}
	return out, nil
}

// isPredicate reports expressions that only make sense in filters.
func isPredicate(e plan.Expr) bool {
	switch e.(type) {
	case *plan.Compare, *plan.Logical, *plan.Not, *plan.StringMatch, *plan.In, *plan.TypeIs:
		return true
	}
	if agg, ok := e.(*plan.Aggregate); ok {
		return agg.Op == plan.Any
	}
	return false
}

// Expression compiles one AST node in scope. Node types without a built-in
// rule go to the extension registered for their dynamic type.
func (c *Compiler) Expression(expr ast.Expression, scope *Scope) (plan.Expr, error) {
	switch n := expr.(type) {
	case nil:
		return nil, &InvariantError{Message: "nil expression"}
	case *ast.Literal:
		return &plan.Const{Value: n.Value}, nil
	case *ast.FieldChain:
		return c.FieldChain(n, scope)
	case *ast.Comparison:
		return c.comparison(n, scope)
	case *ast.Logical:
		return c.logical(n, scope)
	case *ast.Not:
		term, err := c.Expression(n.Term, scope)
		if err != nil {
			return nil, err
		}
		return &plan.Not{Operand: term}, nil
	case *ast.Match:
		target, err := c.FieldChain(n.Target, scope)
		if err != nil {
			return nil, err
		}
		text, ok := n.Text.Value.(value.String)
		if !ok {
			return nil, invariantf(n, "match text has type %s", n.Text.Value.Type())
		}
		return &plan.StringMatch{Kind: plan.MatchKind(n.Kind), Target: target, Pattern: string(text)}, nil
	case *ast.AnyOf:
		target, err := c.FieldChain(n.Target, scope)
		if err != nil {
			return nil, err
		}
		values := make([]value.Value, len(n.Constants))
		for i, lit := range n.Constants {
			values[i] = lit.Value
		}
		return &plan.In{Target: target, Values: values}, nil
	case *ast.Has:
		return c.has(n, scope)
	case *ast.Count:
		source, _, err := c.Collection(n.Target, scope)
		if err != nil {
			return nil, err
		}
		return &plan.Aggregate{Op: plan.Count, Source: source}, nil
	case *ast.IsType:
		return c.isType(n, scope)
	}

	fn, ok := c.extensions[reflect.TypeOf(expr)]
	if !ok {
		return nil, invariantf(expr, "no compiler registered for %T", expr)
	}
	return fn(c, expr, scope)
}

// FieldChain compiles a chain of to-one relationships, optionally ending
// in an attribute, into member accesses on the scope's object.
func (c *Compiler) FieldChain(chain *ast.FieldChain, scope *Scope) (plan.Expr, error) {
	var cur plan.Expr = scope.Object()
	for _, f := range chain.Fields {
		m := member(cur, f)
		if m.Kind == plan.MemberToMany {
			return nil, invariantf(chain, "to-many relationship %q outside an aggregate", f.PublicName())
		}
		cur = m
	}
	return cur, nil
}

// Collection compiles a chain of to-one relationships ending in a to-many
// relationship. It returns the collection member and its element type.
func (c *Compiler) Collection(chain *ast.FieldChain, scope *Scope) (*plan.Member, *resource.Type, error) {
	rel, ok := chain.Relationship()
	if !ok || !rel.IsToMany() {
		return nil, nil, invariantf(chain, "chain does not end in a to-many relationship")
	}
	var prefix plan.Expr = scope.Object()
	if len(chain.Fields) > 1 {
		var err error
		prefix, err = c.FieldChain(&ast.FieldChain{Fields: chain.Fields[:len(chain.Fields)-1]}, scope)
		if err != nil {
			return nil, nil, err
		}
	}
	return member(prefix, rel), rel.Target(), nil
}

func member(target plan.Expr, f resource.Field) *plan.Member {
	m := &plan.Member{
		Target:    target,
		Field:     f.PublicName(),
		Declaring: f.DeclaringType().PublicName(),
	}
	switch f := f.(type) {
	case *resource.Attribute:
		m.Kind = plan.MemberAttribute
		m.ValueType = f.ValueType()
	case *resource.Relationship:
		m.Kind = plan.MemberToOne
		if f.IsToMany() {
			m.Kind = plan.MemberToMany
		}
		m.Related = f.Target().PublicName()
	}
	return m
}

var compareOps = map[ast.ComparisonOperator]plan.CompareOp{
	ast.Equals:         plan.Eq,
	ast.GreaterThan:    plan.Gt,
	ast.GreaterOrEqual: plan.Ge,
	ast.LessThan:       plan.Lt,
	ast.LessOrEqual:    plan.Le,
}

func (c *Compiler) comparison(n *ast.Comparison, scope *Scope) (plan.Expr, error) {
	op, ok := compareOps[n.Operator]
	if !ok {
		return nil, invariantf(n, "unknown comparison operator %q", n.Operator)
	}
	left, err := c.Expression(n.Left, scope)
	if err != nil {
		return nil, err
	}
	right, err := c.Expression(n.Right, scope)
	if err != nil {
		return nil, err
	}
	if plan.IsNullConst(right) && op != plan.Eq {
		return nil, invariantf(n, "null compared with %s", op)
	}
	return &plan.Compare{Op: op, Left: left, Right: right}, nil
}

func (c *Compiler) logical(n *ast.Logical, scope *Scope) (plan.Expr, error) {
	op := plan.And
	if n.Operator == ast.Or {
		op = plan.Or
	}
	operands := make([]plan.Expr, len(n.Terms))
	for i, t := range n.Terms {
		e, err := c.Expression(t, scope)
		if err != nil {
			return nil, err
		}
		operands[i] = e
	}
	return &plan.Logical{Op: op, Operands: operands}, nil
}

func (c *Compiler) has(n *ast.Has, scope *Scope) (plan.Expr, error) {
	source, elem, err := c.Collection(n.Target, scope)
	if err != nil {
		return nil, err
	}
	agg := &plan.Aggregate{Op: plan.Any, Source: source}
	if n.Filter != nil {
		inner := scope.Enter(elem)
		body, err := c.Expression(n.Filter, inner)
		if err != nil {
			return nil, err
		}
		agg.Lambda = inner.Lambda(body)
	}
	return agg, nil
}

func (c *Compiler) isType(n *ast.IsType, scope *Scope) (plan.Expr, error) {
	target := scope.Object()
	if n.Target != nil {
		var err error
		target, err = c.FieldChain(n.Target, scope)
		if err != nil {
			return nil, err
		}
	}

	var types []string
	for _, d := range n.DerivedType.Descendants() {
		types = append(types, d.PublicName())
	}
	test := &plan.TypeIs{Target: target, Name: n.DerivedType.PublicName(), Types: types}
	if n.Child == nil {
		return test, nil
	}

	child, err := c.Expression(n.Child, scope.Narrow(target, n.DerivedType))
	if err != nil {
		return nil, err
	}
	return &plan.Logical{Op: plan.And, Operands: []plan.Expr{test, child}}, nil
}
