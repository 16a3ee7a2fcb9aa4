// Package ast defines the typed syntax tree produced by the query string
// parsers and consumed by the compiler.
//
// Nodes are immutable once built and may be shared freely. Every node renders
// back to query string text via String; parsing that text against the same
// registry yields an equal tree.
//
// Expression is deliberately open: parser extensions add their own node types
// (see internal/funcs) and register matching compilers.
package ast

import (
	"strings"

	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/value"
)

// Node is any syntax tree node.
type Node interface {
	// String renders the node as query string text.
	String() string
}

// Expression is a node that produces a value when evaluated.
type Expression interface {
	Node
	// ReturnType is the static type of the expression. Filter functions
	// return value.TypeBool; relationship chains return value.TypeUnknown.
	ReturnType() value.Type
}

// Literal is a constant. Null literals hold value.Null.
type Literal struct {
	Value value.Value
}

// NewLiteral wraps v in a Literal.
func NewLiteral(v value.Value) *Literal {
	return &Literal{Value: v}
}

func (l *Literal) ReturnType() value.Type { return l.Value.Type() }

func (l *Literal) String() string {
	if value.IsNull(l.Value) {
		return "null"
	}
	return Quote(value.Format(l.Value))
}

// Quote renders text as a quoted literal, doubling embedded quotes.
func Quote(text string) string {
	return "'" + strings.ReplaceAll(text, "'", "''") + "'"
}

// FieldChain is a resolved path of fields. Every element except the last is
// a relationship.
type FieldChain struct {
	Fields []resource.Field
	// Position is the offset of the chain in the parameter value it was
	// parsed from.
	Position int
}

// NewFieldChain builds a chain from resolved fields.
func NewFieldChain(fields ...resource.Field) *FieldChain {
	return &FieldChain{Fields: fields}
}

func (c *FieldChain) String() string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.PublicName()
	}
	return strings.Join(names, ".")
}

// ReturnType is the attribute type when the chain ends in an attribute.
func (c *FieldChain) ReturnType() value.Type {
	if a, ok := c.Last().(*resource.Attribute); ok {
		return a.ValueType()
	}
	return value.TypeUnknown
}

// Last returns the final field of the chain.
func (c *FieldChain) Last() resource.Field {
	return c.Fields[len(c.Fields)-1]
}

// Attribute returns the final field when it is an attribute.
func (c *FieldChain) Attribute() (*resource.Attribute, bool) {
	a, ok := c.Last().(*resource.Attribute)
	return a, ok
}

// Relationship returns the final field when it is a relationship.
func (c *FieldChain) Relationship() (*resource.Relationship, bool) {
	r, ok := c.Last().(*resource.Relationship)
	return r, ok
}

// Relationships returns the chain's elements as relationships. It panics if
// any element is an attribute; use it on scope and include chains only.
func (c *FieldChain) Relationships() []*resource.Relationship {
	out := make([]*resource.Relationship, len(c.Fields))
	for i, f := range c.Fields {
		out[i] = f.(*resource.Relationship)
	}
	return out
}

// Equal reports whether both chains resolve to the same fields.
func (c *FieldChain) Equal(other *FieldChain) bool {
	if c == nil || other == nil {
		return c == other
	}
	if len(c.Fields) != len(other.Fields) {
		return false
	}
	for i := range c.Fields {
		if c.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}
