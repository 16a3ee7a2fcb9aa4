package resource

import (
	"fmt"
	"strings"

	"github.com/roach88/apiquery/internal/value"
)

// Capability is a bit set of query string operations a field supports.
type Capability uint8

const (
	// CapView allows the field in responses and sparse fieldsets.
	CapView Capability = 1 << iota
	// CapFilter allows the field in filter expressions.
	CapFilter
	// CapSort allows the attribute in sort expressions.
	CapSort
	// CapInclude allows the relationship in include paths and scopes.
	CapInclude
)

// AttributeCapabilities are the defaults for attributes.
const AttributeCapabilities = CapView | CapFilter | CapSort

// RelationshipCapabilities are the defaults for relationships.
const RelationshipCapabilities = CapView | CapFilter | CapInclude

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapView, "view"},
	{CapFilter, "filter"},
	{CapSort, "sort"},
	{CapInclude, "include"},
}

// Has reports whether every bit of c2 is set in c.
func (c Capability) Has(c2 Capability) bool {
	return c&c2 == c2
}

func (c Capability) String() string {
	var names []string
	for _, cn := range capabilityNames {
		if c.Has(cn.cap) {
			names = append(names, cn.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseCapabilities converts capability keywords into a bit set.
func ParseCapabilities(names []string) (Capability, error) {
	var c Capability
	for _, name := range names {
		found := false
		for _, cn := range capabilityNames {
			if strings.EqualFold(cn.name, name) {
				c |= cn.cap
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown capability %q", name)
		}
	}
	return c, nil
}

// RelationshipKind distinguishes to-one from to-many relationships.
type RelationshipKind int

const (
	ToOne RelationshipKind = iota
	ToMany
)

func (k RelationshipKind) String() string {
	if k == ToMany {
		return "toMany"
	}
	return "toOne"
}

// Field is either an *Attribute or a *Relationship.
type Field interface {
	field() // Sealed
	PublicName() string
	// DeclaringType is the type that declared the field. For inherited fields
	// this is the base type.
	DeclaringType() *Type
	Capabilities() Capability
}

// Attribute is a scalar field of a resource type.
type Attribute struct {
	name     string
	typ      value.Type
	nullable bool
	caps     Capability
	owner    *Type
}

func (*Attribute) field() {}

func (a *Attribute) PublicName() string       { return a.name }
func (a *Attribute) DeclaringType() *Type     { return a.owner }
func (a *Attribute) Capabilities() Capability { return a.caps }

// ValueType is the declared type of the attribute's values.
func (a *Attribute) ValueType() value.Type { return a.typ }

// Nullable reports whether the attribute may hold null.
func (a *Attribute) Nullable() bool { return a.nullable }

// IsNumeric reports whether the attribute holds Int or Float values.
func (a *Attribute) IsNumeric() bool { return a.typ.IsNumeric() }

// IsString reports whether the attribute holds String values.
func (a *Attribute) IsString() bool { return a.typ == value.TypeString }

// Relationship links a resource type to another.
type Relationship struct {
	name   string
	kind   RelationshipKind
	target *Type
	caps   Capability
	owner  *Type
}

func (*Relationship) field() {}

func (r *Relationship) PublicName() string       { return r.name }
func (r *Relationship) DeclaringType() *Type     { return r.owner }
func (r *Relationship) Capabilities() Capability { return r.caps }

// Kind reports whether the relationship is to-one or to-many.
func (r *Relationship) Kind() RelationshipKind { return r.kind }

// IsToMany reports whether the relationship is to-many.
func (r *Relationship) IsToMany() bool { return r.kind == ToMany }

// Target is the resource type on the other side of the relationship.
func (r *Relationship) Target() *Type { return r.target }

// Type is a resource type. Types are created by Graph.Freeze and never
// change afterwards.
type Type struct {
	name    string
	base    *Type
	derived []*Type

	// Own fields in declaration order.
	ownAttributes    []*Attribute
	ownRelationships []*Relationship

	// Effective fields (inherited first, then own), precomputed on freeze.
	attributes    []*Attribute
	relationships []*Relationship
	fields        map[string]Field
}

// PublicName is the name used in query strings and documents.
func (t *Type) PublicName() string { return t.name }

func (t *Type) String() string { return t.name }

// Base returns the type this type derives from, or nil.
func (t *Type) Base() *Type { return t.base }

// DirectlyDerived returns the types whose base is t.
func (t *Type) DirectlyDerived() []*Type { return t.derived }

// Root returns the top of t's inheritance chain. Derived types share the
// collection of their root type.
func (t *Type) Root() *Type {
	r := t
	for r.base != nil {
		r = r.base
	}
	return r
}

// IsA reports whether t is other or derives from it.
func (t *Type) IsA(other *Type) bool {
	for c := t; c != nil; c = c.base {
		if c == other {
			return true
		}
	}
	return false
}

// Descendants returns t followed by every type that derives from it,
// directly or indirectly, in declaration order.
func (t *Type) Descendants() []*Type {
	out := []*Type{t}
	for _, d := range t.derived {
		out = append(out, d.Descendants()...)
	}
	return out
}

// Field looks up an effective attribute or relationship by public name.
func (t *Type) Field(name string) (Field, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// Attribute looks up an effective attribute by public name.
func (t *Type) Attribute(name string) (*Attribute, bool) {
	a, ok := t.fields[name].(*Attribute)
	return a, ok
}

// Relationship looks up an effective relationship by public name.
func (t *Type) Relationship(name string) (*Relationship, bool) {
	r, ok := t.fields[name].(*Relationship)
	return r, ok
}

// Attributes returns the effective attributes, "id" first.
func (t *Type) Attributes() []*Attribute { return t.attributes }

// Relationships returns the effective relationships.
func (t *Type) Relationships() []*Relationship { return t.relationships }

// ViewableAttributes returns the effective attributes with CapView.
func (t *Type) ViewableAttributes() []*Attribute {
	var out []*Attribute
	for _, a := range t.attributes {
		if a.caps.Has(CapView) {
			out = append(out, a)
		}
	}
	return out
}

// ViewableRelationships returns the effective relationships with CapView.
func (t *Type) ViewableRelationships() []*Relationship {
	var out []*Relationship
	for _, r := range t.relationships {
		if r.caps.Has(CapView) {
			out = append(out, r)
		}
	}
	return out
}

// Registry is a frozen set of resource types.
type Registry struct {
	types map[string]*Type
	order []*Type
}

// Type looks up a resource type by public name.
func (r *Registry) Type(name string) (*Type, bool) {
	t, ok := r.types[name]
	return t, ok
}

// MustType looks up a resource type and panics if it does not exist.
// Intended for tests and fixtures.
func (r *Registry) MustType(name string) *Type {
	t, ok := r.types[name]
	if !ok {
		panic(fmt.Sprintf("resource type %q does not exist", name))
	}
	return t
}

// Types returns all resource types in declaration order.
func (r *Registry) Types() []*Type { return r.order }
