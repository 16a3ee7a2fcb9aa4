package ast

import (
	"strconv"
	"strings"

	"github.com/roach88/apiquery/internal/resource"
)

// SortElement orders by an attribute chain, a count or an extension
// expression.
type SortElement struct {
	Target    Expression
	Ascending bool
}

func (e *SortElement) String() string {
	if e.Ascending {
		return e.Target.String()
	}
	return "-" + e.Target.String()
}

// Sort is an ordered list of sort elements; earlier elements take precedence.
type Sort struct {
	Elements []*SortElement
}

func (s *Sort) String() string {
	parts := make([]string, len(s.Elements))
	for i, e := range s.Elements {
		parts[i] = e.String()
	}
	return strings.Join(parts, ",")
}

// IncludeElement is one relationship in an include tree.
type IncludeElement struct {
	Relationship *resource.Relationship
	Children     []*IncludeElement
}

// Child returns the child element for rel, if present.
func (e *IncludeElement) Child(rel *resource.Relationship) *IncludeElement {
	for _, c := range e.Children {
		if c.Relationship == rel {
			return c
		}
	}
	return nil
}

// Include is the tree of relationships to include in a response.
type Include struct {
	Elements []*IncludeElement
}

// Merge returns a new tree that also contains path. The receiver is not
// modified.
func (inc *Include) Merge(path []*resource.Relationship) *Include {
	var elems []*IncludeElement
	if inc != nil {
		elems = inc.Elements
	}
	return &Include{Elements: mergeInto(elems, path)}
}

func mergeInto(elems []*IncludeElement, path []*resource.Relationship) []*IncludeElement {
	if len(path) == 0 {
		return elems
	}
	out := make([]*IncludeElement, 0, len(elems)+1)
	merged := false
	for _, e := range elems {
		if e.Relationship == path[0] {
			out = append(out, &IncludeElement{
				Relationship: e.Relationship,
				Children:     mergeInto(e.Children, path[1:]),
			})
			merged = true
			continue
		}
		out = append(out, e)
	}
	if !merged {
		out = append(out, &IncludeElement{
			Relationship: path[0],
			Children:     mergeInto(nil, path[1:]),
		})
	}
	return out
}

// Paths flattens the tree into its leaf paths in tree order.
func (inc *Include) Paths() [][]*resource.Relationship {
	var out [][]*resource.Relationship
	var walk func(prefix []*resource.Relationship, elems []*IncludeElement)
	walk = func(prefix []*resource.Relationship, elems []*IncludeElement) {
		for _, e := range elems {
			path := append(append([]*resource.Relationship{}, prefix...), e.Relationship)
			if len(e.Children) == 0 {
				out = append(out, path)
				continue
			}
			walk(path, e.Children)
		}
	}
	if inc != nil {
		walk(nil, inc.Elements)
	}
	return out
}

func (inc *Include) String() string {
	var parts []string
	for _, path := range inc.Paths() {
		names := make([]string, len(path))
		for i, r := range path {
			names[i] = r.PublicName()
		}
		parts = append(parts, strings.Join(names, "."))
	}
	return strings.Join(parts, ",")
}

// SparseFieldSet is an explicit selection of fields for one resource type.
// An empty set is a valid selection of nothing.
type SparseFieldSet struct {
	Fields []resource.Field
}

// Contains reports whether the set selects f.
func (s *SparseFieldSet) Contains(f resource.Field) bool {
	for _, sf := range s.Fields {
		if sf == f {
			return true
		}
	}
	return false
}

func (s *SparseFieldSet) String() string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.PublicName()
	}
	return strings.Join(names, ",")
}

// PaginationElement is one "[scope:]value" entry of a page parameter. Scope
// is nil for the primary resource.
type PaginationElement struct {
	Scope *FieldChain
	Value int
}

func (e *PaginationElement) String() string {
	if e.Scope == nil {
		return strconv.Itoa(e.Value)
	}
	return e.Scope.String() + ":" + strconv.Itoa(e.Value)
}

// PaginationValues is the parsed value of page[size] or page[number].
type PaginationValues struct {
	Elements []*PaginationElement
}

func (p *PaginationValues) String() string {
	parts := make([]string, len(p.Elements))
	for i, e := range p.Elements {
		parts[i] = e.String()
	}
	return strings.Join(parts, ",")
}

// Pagination is the effective page of one scope. Size 0 means unlimited.
type Pagination struct {
	Number int
	Size   int
}

func (p Pagination) String() string {
	return "page " + strconv.Itoa(p.Number) + " size " + strconv.Itoa(p.Size)
}
