package ast

import (
	"strings"

	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/value"
)

// ComparisonOperator is the keyword of a comparison function.
type ComparisonOperator string

const (
	Equals         ComparisonOperator = "equals"
	GreaterThan    ComparisonOperator = "greaterThan"
	GreaterOrEqual ComparisonOperator = "greaterOrEqual"
	LessThan       ComparisonOperator = "lessThan"
	LessOrEqual    ComparisonOperator = "lessOrEqual"
)

// ComparisonOperators lists every comparison keyword.
var ComparisonOperators = []ComparisonOperator{Equals, GreaterThan, GreaterOrEqual, LessThan, LessOrEqual}

// Comparison compares two operands. The right operand is a null literal only
// when the operator is Equals.
type Comparison struct {
	Operator ComparisonOperator
	Left     Expression
	Right    Expression
}

func (c *Comparison) ReturnType() value.Type { return value.TypeBool }

func (c *Comparison) String() string {
	return call(string(c.Operator), c.Left.String(), c.Right.String())
}

// LogicalOperator is "and" or "or".
type LogicalOperator string

const (
	And LogicalOperator = "and"
	Or  LogicalOperator = "or"
)

// Logical combines two or more filter terms.
type Logical struct {
	Operator LogicalOperator
	Terms    []Expression
}

// NewLogical combines terms. A single term is returned unchanged and no
// terms yield nil.
func NewLogical(op LogicalOperator, terms ...Expression) Expression {
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return terms[0]
	}
	return &Logical{Operator: op, Terms: terms}
}

func (l *Logical) ReturnType() value.Type { return value.TypeBool }

func (l *Logical) String() string {
	args := make([]string, len(l.Terms))
	for i, t := range l.Terms {
		args[i] = t.String()
	}
	return call(string(l.Operator), args...)
}

// Not negates a filter term.
type Not struct {
	Term Expression
}

func (n *Not) ReturnType() value.Type { return value.TypeBool }
func (n *Not) String() string         { return call("not", n.Term.String()) }

// MatchKind is the keyword of a text matching function.
type MatchKind string

const (
	Contains   MatchKind = "contains"
	StartsWith MatchKind = "startsWith"
	EndsWith   MatchKind = "endsWith"
)

// Match tests a string attribute against literal text.
type Match struct {
	Kind   MatchKind
	Target *FieldChain
	Text   *Literal
}

func (m *Match) ReturnType() value.Type { return value.TypeBool }

func (m *Match) String() string {
	return call(string(m.Kind), m.Target.String(), m.Text.String())
}

// AnyOf tests whether an attribute equals one of a set of constants.
type AnyOf struct {
	Target    *FieldChain
	Constants []*Literal
}

func (a *AnyOf) ReturnType() value.Type { return value.TypeBool }

func (a *AnyOf) String() string {
	args := []string{a.Target.String()}
	for _, c := range a.Constants {
		args = append(args, c.String())
	}
	return call("any", args...)
}

// Has tests whether a to-many relationship contains any element, optionally
// matching Filter, which is expressed on the relationship's target type.
type Has struct {
	Target *FieldChain
	Filter Expression
}

func (h *Has) ReturnType() value.Type { return value.TypeBool }

func (h *Has) String() string {
	if h.Filter == nil {
		return call("has", h.Target.String())
	}
	return call("has", h.Target.String(), h.Filter.String())
}

// Count yields the number of elements in a to-many relationship.
type Count struct {
	Target *FieldChain
}

func (c *Count) ReturnType() value.Type { return value.TypeInt }
func (c *Count) String() string         { return call("count", c.Target.String()) }

// IsType tests whether a resource (or the to-one relationship Target) is of
// DerivedType, optionally matching Child, which is expressed on DerivedType.
type IsType struct {
	Target      *FieldChain
	DerivedType *resource.Type
	Child       Expression
}

func (i *IsType) ReturnType() value.Type { return value.TypeBool }

func (i *IsType) String() string {
	target := ""
	if i.Target != nil {
		target = i.Target.String()
	}
	if i.Child == nil {
		return call("isType", target, i.DerivedType.PublicName())
	}
	return call("isType", target, i.DerivedType.PublicName(), i.Child.String())
}

// call renders name(arg1,arg2,...).
func call(name string, args ...string) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(args, ","))
	sb.WriteByte(')')
	return sb.String()
}

// Call renders an extension function in the same form as the built-ins.
func Call(name string, args ...Node) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return call(name, parts...)
}
