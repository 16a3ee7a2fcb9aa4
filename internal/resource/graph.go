package resource

import (
	"fmt"
	"regexp"

	"github.com/roach88/apiquery/internal/value"
)

// IDField is the implicit identity attribute present on every type.
const IDField = "id"

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Definition is the serialisable form of a registry.
type Definition struct {
	Resources []TypeDef `yaml:"resources"`
}

// TypeDef declares one resource type.
type TypeDef struct {
	Name          string            `yaml:"name"`
	Base          string            `yaml:"base,omitempty"`
	Attributes    []AttributeDef    `yaml:"attributes,omitempty"`
	Relationships []RelationshipDef `yaml:"relationships,omitempty"`
}

// AttributeDef declares an attribute. A nil Capabilities list means all
// attribute capabilities; an empty list means none.
type AttributeDef struct {
	Name         string   `yaml:"name"`
	Type         string   `yaml:"type"`
	Nullable     bool     `yaml:"nullable,omitempty"`
	Capabilities []string `yaml:"capabilities,omitempty"`
}

// RelationshipDef declares a relationship. Kind is "toOne" or "toMany".
type RelationshipDef struct {
	Name         string   `yaml:"name"`
	Kind         string   `yaml:"kind"`
	Target       string   `yaml:"target"`
	Capabilities []string `yaml:"capabilities,omitempty"`
}

// Graph collects type definitions until Freeze is called.
type Graph struct {
	defs []TypeDef
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Add appends type definitions. Validation is deferred to Freeze so that
// definitions may reference each other in any order.
func (g *Graph) Add(defs ...TypeDef) *Graph {
	g.defs = append(g.defs, defs...)
	return g
}

// Freeze validates the collected definitions and builds an immutable Registry.
func (g *Graph) Freeze() (*Registry, error) {
	reg := &Registry{types: make(map[string]*Type, len(g.defs))}

	// Pass 1: create types.
	for _, def := range g.defs {
		if !namePattern.MatchString(def.Name) {
			return nil, &SchemaError{Type: def.Name, Message: "invalid resource type name"}
		}
		if _, dup := reg.types[def.Name]; dup {
			return nil, &SchemaError{Type: def.Name, Message: "duplicate resource type"}
		}
		t := &Type{name: def.Name}
		reg.types[def.Name] = t
		reg.order = append(reg.order, t)
	}

	// Pass 2: resolve bases and own fields.
	for i, def := range g.defs {
		t := reg.order[i]
		if def.Base != "" {
			base, ok := reg.types[def.Base]
			if !ok {
				return nil, &SchemaError{Type: def.Name, Message: fmt.Sprintf("base type %q does not exist", def.Base)}
			}
			t.base = base
			base.derived = append(base.derived, t)
		}
		if err := buildOwnFields(reg, t, def); err != nil {
			return nil, err
		}
	}

	for _, t := range reg.order {
		if err := checkInheritance(t); err != nil {
			return nil, err
		}
	}

	// Pass 3: effective field sets.
	for _, t := range reg.order {
		if err := computeEffectiveFields(t); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func buildOwnFields(reg *Registry, t *Type, def TypeDef) error {
	seen := make(map[string]bool)
	if def.Base == "" {
		t.ownAttributes = append(t.ownAttributes, &Attribute{
			name:  IDField,
			typ:   value.TypeString,
			caps:  AttributeCapabilities,
			owner: t,
		})
		seen[IDField] = true
	}

	for _, ad := range def.Attributes {
		if err := checkFieldName(t, ad.Name, seen); err != nil {
			return err
		}
		typ, err := value.ParseType(ad.Type)
		if err != nil {
			return &SchemaError{Type: t.name, Field: ad.Name, Message: err.Error()}
		}
		caps := AttributeCapabilities
		if ad.Capabilities != nil {
			caps, err = ParseCapabilities(ad.Capabilities)
			if err != nil {
				return &SchemaError{Type: t.name, Field: ad.Name, Message: err.Error()}
			}
			if caps.Has(CapInclude) {
				return &SchemaError{Type: t.name, Field: ad.Name, Message: "attributes cannot be included"}
			}
		}
		t.ownAttributes = append(t.ownAttributes, &Attribute{
			name:     ad.Name,
			typ:      typ,
			nullable: ad.Nullable,
			caps:     caps,
			owner:    t,
		})
	}

	for _, rd := range def.Relationships {
		if err := checkFieldName(t, rd.Name, seen); err != nil {
			return err
		}
		var kind RelationshipKind
		switch rd.Kind {
		case "toOne", "hasOne":
			kind = ToOne
		case "toMany", "hasMany":
			kind = ToMany
		default:
			return &SchemaError{Type: t.name, Field: rd.Name, Message: fmt.Sprintf("unknown relationship kind %q", rd.Kind)}
		}
		target, ok := reg.types[rd.Target]
		if !ok {
			return &SchemaError{Type: t.name, Field: rd.Name, Message: fmt.Sprintf("target type %q does not exist", rd.Target)}
		}
		caps := RelationshipCapabilities
		if rd.Capabilities != nil {
			var err error
			caps, err = ParseCapabilities(rd.Capabilities)
			if err != nil {
				return &SchemaError{Type: t.name, Field: rd.Name, Message: err.Error()}
			}
			if caps.Has(CapSort) {
				return &SchemaError{Type: t.name, Field: rd.Name, Message: "relationships cannot be sorted on"}
			}
		}
		t.ownRelationships = append(t.ownRelationships, &Relationship{
			name:   rd.Name,
			kind:   kind,
			target: target,
			caps:   caps,
			owner:  t,
		})
	}
	return nil
}

func checkFieldName(t *Type, name string, seen map[string]bool) error {
	if !namePattern.MatchString(name) {
		return &SchemaError{Type: t.name, Field: name, Message: "invalid field name"}
	}
	if seen[name] {
		if name == IDField {
			return &SchemaError{Type: t.name, Field: name, Message: "the id attribute is implicit and cannot be redeclared"}
		}
		return &SchemaError{Type: t.name, Field: name, Message: "duplicate field"}
	}
	seen[name] = true
	return nil
}

func checkInheritance(t *Type) error {
	visited := map[*Type]bool{}
	for c := t; c != nil; c = c.base {
		if visited[c] {
			return &SchemaError{Type: t.name, Message: "inheritance cycle"}
		}
		visited[c] = true
	}
	return nil
}

// computeEffectiveFields fills t's effective fields from its base chain,
// root first, so that inherited fields keep their declaration order.
func computeEffectiveFields(t *Type) error {
	var chain []*Type
	for c := t; c != nil; c = c.base {
		chain = append([]*Type{c}, chain...)
	}

	t.fields = make(map[string]Field)
	for _, c := range chain {
		for _, a := range c.ownAttributes {
			if _, dup := t.fields[a.name]; dup {
				return &SchemaError{Type: t.name, Field: a.name, Message: fmt.Sprintf("field hides inherited field of %q", c.base.name)}
			}
			t.fields[a.name] = a
			t.attributes = append(t.attributes, a)
		}
		for _, r := range c.ownRelationships {
			if _, dup := t.fields[r.name]; dup {
				return &SchemaError{Type: t.name, Field: r.name, Message: fmt.Sprintf("field hides inherited field of %q", c.base.name)}
			}
			t.fields[r.name] = r
			t.relationships = append(t.relationships, r)
		}
	}
	return nil
}
