package plan

import (
	"strings"

	"github.com/roach88/apiquery/internal/value"
)

// Expr is a node of a plan expression tree.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package

	// Type is the static value type of the expression. Object-valued
	// expressions (parameters, relationships) report value.TypeUnknown.
	Type() value.Type

	String() string
}

// Param is a lambda variable bound to one object of Resource.
type Param struct {
	Name     string
	Resource string
}

func (*Param) exprNode()        {}
func (*Param) Type() value.Type { return value.TypeUnknown }
func (p *Param) String() string { return p.Name }

// Const is a scalar constant.
type Const struct {
	Value value.Value
}

func (*Const) exprNode() {}

func (c *Const) Type() value.Type {
	if value.IsNull(c.Value) {
		return value.TypeUnknown
	}
	return c.Value.Type()
}

func (c *Const) String() string {
	if s, ok := c.Value.(value.String); ok {
		return "'" + strings.ReplaceAll(string(s), "'", "''") + "'"
	}
	return value.Format(c.Value)
}

// IsNullConst reports whether e is the Null constant.
func IsNullConst(e Expr) bool {
	c, ok := e.(*Const)
	return ok && value.IsNull(c.Value)
}

// MemberKind distinguishes attribute access from relationship navigation.
type MemberKind int

const (
	MemberAttribute MemberKind = iota
	MemberToOne
	MemberToMany
)

func (k MemberKind) String() string {
	switch k {
	case MemberToOne:
		return "toOne"
	case MemberToMany:
		return "toMany"
	default:
		return "attribute"
	}
}

// Member accesses Field on the object Target evaluates to.
//
// Declaring is the resource type that declares the field. Related is the
// target resource type of a relationship and empty for attributes.
// A to-many member is only valid as the Source of an Aggregate.
type Member struct {
	Target    Expr
	Field     string
	Kind      MemberKind
	ValueType value.Type
	Declaring string
	Related   string
}

func (*Member) exprNode()          {}
func (m *Member) Type() value.Type { return m.ValueType }
func (m *Member) String() string   { return m.Target.String() + "." + m.Field }

// CompareOp is a comparison operator.
type CompareOp string

const (
	Eq CompareOp = "=="
	Ne CompareOp = "!="
	Gt CompareOp = ">"
	Ge CompareOp = ">="
	Lt CompareOp = "<"
	Le CompareOp = "<="
)

// Compare compares two scalar expressions.
type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func (*Compare) exprNode()        {}
func (*Compare) Type() value.Type { return value.TypeBool }

func (c *Compare) String() string {
	return "(" + c.Left.String() + " " + string(c.Op) + " " + c.Right.String() + ")"
}

// LogicalOp combines boolean operands.
type LogicalOp string

const (
	And LogicalOp = "&&"
	Or  LogicalOp = "||"
)

// Logical is a conjunction or disjunction. An empty And is true and an
// empty Or is false.
type Logical struct {
	Op       LogicalOp
	Operands []Expr
}

func (*Logical) exprNode()        {}
func (*Logical) Type() value.Type { return value.TypeBool }

func (l *Logical) String() string {
	parts := make([]string, len(l.Operands))
	for i, o := range l.Operands {
		parts[i] = o.String()
	}
	return "(" + strings.Join(parts, " "+string(l.Op)+" ") + ")"
}

// Not negates a boolean operand.
type Not struct {
	Operand Expr
}

func (*Not) exprNode()        {}
func (*Not) Type() value.Type { return value.TypeBool }
func (n *Not) String() string { return "!" + n.Operand.String() }

// MatchKind selects a text match.
type MatchKind string

const (
	Contains   MatchKind = "contains"
	StartsWith MatchKind = "startsWith"
	EndsWith   MatchKind = "endsWith"
)

// StringMatch tests Target against a constant text, case-sensitively.
type StringMatch struct {
	Kind    MatchKind
	Target  Expr
	Pattern string
}

func (*StringMatch) exprNode()        {}
func (*StringMatch) Type() value.Type { return value.TypeBool }

func (m *StringMatch) String() string {
	return m.Target.String() + "." + string(m.Kind) + "(" + (&Const{Value: value.String(m.Pattern)}).String() + ")"
}

// In tests whether Target equals one of Values.
type In struct {
	Target Expr
	Values []value.Value
}

func (*In) exprNode()        {}
func (*In) Type() value.Type { return value.TypeBool }

func (in *In) String() string {
	parts := make([]string, len(in.Values))
	for i, v := range in.Values {
		parts[i] = (&Const{Value: v}).String()
	}
	return "(" + in.Target.String() + " in [" + strings.Join(parts, ", ") + "])"
}

// AggregateOp is a collection operation.
type AggregateOp string

const (
	// Any is true when some element satisfies Lambda, or when the
	// collection is non-empty if Lambda is nil.
	Any AggregateOp = "any"
	// Count is the number of elements.
	Count AggregateOp = "count"
	// Sum adds Lambda's numeric selector over the elements. The sum of an
	// empty collection is zero.
	Sum AggregateOp = "sum"
)

// Aggregate applies Op to the to-many relationship Source. Lambda binds
// each element of the collection.
type Aggregate struct {
	Op     AggregateOp
	Source *Member
	Lambda *Lambda
}

func (*Aggregate) exprNode() {}

func (a *Aggregate) Type() value.Type {
	switch a.Op {
	case Count:
		return value.TypeInt
	case Sum:
		return a.Lambda.Body.Type()
	default:
		return value.TypeBool
	}
}

func (a *Aggregate) String() string {
	inner := ""
	if a.Lambda != nil {
		inner = a.Lambda.String()
	}
	return a.Source.String() + "." + string(a.Op) + "(" + inner + ")"
}

// TypeIs tests whether the object Target evaluates to has one of the
// concrete Types. Name is the requested type; Types holds it and its
// descendants.
type TypeIs struct {
	Target Expr
	Name   string
	Types  []string
}

func (*TypeIs) exprNode()        {}
func (*TypeIs) Type() value.Type { return value.TypeBool }

func (t *TypeIs) String() string {
	return "(" + t.Target.String() + " is " + t.Name + ")"
}

// Func is a scalar function.
type Func string

const (
	Upper  Func = "upper"
	Lower  Func = "lower"
	Length Func = "length"
)

// Call applies a scalar function.
type Call struct {
	Func Func
	Args []Expr
}

func (*Call) exprNode() {}

func (c *Call) Type() value.Type {
	if c.Func == Length {
		return value.TypeInt
	}
	return value.TypeString
}

func (c *Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return string(c.Func) + "(" + strings.Join(parts, ", ") + ")"
}

// Lambda binds Param to each object and evaluates Body.
type Lambda struct {
	Param *Param
	Body  Expr
}

func (*Lambda) exprNode()          {}
func (l *Lambda) Type() value.Type { return l.Body.Type() }
func (l *Lambda) String() string   { return l.Param.Name + " => " + l.Body.String() }

// Substitute returns e with every reference to from replaced by to.
// Nodes without a reference are shared, not copied.
func Substitute(e Expr, from, to *Param) Expr {
	switch n := e.(type) {
	case nil:
		return nil
	case *Param:
		if n == from {
			return to
		}
		return n
	case *Const:
		return n
	case *Member:
		c := *n
		c.Target = Substitute(n.Target, from, to)
		return &c
	case *Compare:
		return &Compare{Op: n.Op, Left: Substitute(n.Left, from, to), Right: Substitute(n.Right, from, to)}
	case *Logical:
		ops := make([]Expr, len(n.Operands))
		for i, o := range n.Operands {
			ops[i] = Substitute(o, from, to)
		}
		return &Logical{Op: n.Op, Operands: ops}
	case *Not:
		return &Not{Operand: Substitute(n.Operand, from, to)}
	case *StringMatch:
		return &StringMatch{Kind: n.Kind, Target: Substitute(n.Target, from, to), Pattern: n.Pattern}
	case *In:
		return &In{Target: Substitute(n.Target, from, to), Values: n.Values}
	case *Aggregate:
		agg := &Aggregate{Op: n.Op, Source: Substitute(n.Source, from, to).(*Member)}
		if n.Lambda != nil {
			agg.Lambda = Substitute(n.Lambda, from, to).(*Lambda)
		}
		return agg
	case *TypeIs:
		return &TypeIs{Target: Substitute(n.Target, from, to), Name: n.Name, Types: n.Types}
	case *Call:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = Substitute(a, from, to)
		}
		return &Call{Func: n.Func, Args: args}
	case *Lambda:
		if n.Param == from {
			return n
		}
		return &Lambda{Param: n.Param, Body: Substitute(n.Body, from, to)}
	}
	return e
}
