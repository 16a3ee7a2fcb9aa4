package constraint

import (
	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/resource"
)

// Scope holds the constraints anchored to one relationship path. Path is
// nil for the primary resource.
type Scope struct {
	Path   *ast.FieldChain
	Filter ast.Expression
	Sort   *ast.Sort
	Page   *ast.Pagination
}

// Name is the dotted relationship path, or "" for the primary scope.
func (s *Scope) Name() string {
	if s.Path == nil {
		return ""
	}
	return s.Path.String()
}

// Target is the resource type the scope's constraints apply to.
func (s *Scope) Target(primary *resource.Type) *resource.Type {
	if s.Path == nil {
		return primary
	}
	rel, _ := s.Path.Relationship()
	return rel.Target()
}

// Set is the validated result of reading all query string parameters of one
// request.
type Set struct {
	Resource *resource.Type

	// Include is the explicitly requested include tree. Nil when the
	// include parameter was absent.
	Include *ast.Include

	// Scopes lists the primary scope first, then nested scopes in order of
	// first appearance.
	Scopes []*Scope

	// Fieldsets holds explicit sparse fieldsets only.
	Fieldsets map[*resource.Type]*ast.SparseFieldSet
}

// Primary returns the scope of the primary resource.
func (s *Set) Primary() *Scope {
	return s.Scopes[0]
}

// Scope returns the scope for the dotted path name ("" for primary).
func (s *Set) Scope(name string) (*Scope, bool) {
	for _, sc := range s.Scopes {
		if sc.Name() == name {
			return sc, true
		}
	}
	return nil, false
}

// Fields returns the fields selected for rt. Without an explicit fieldset
// every viewable field is selected; an explicit empty set selects nothing.
func (s *Set) Fields(rt *resource.Type) (fields []resource.Field, explicit bool) {
	if fs, ok := s.Fieldsets[rt]; ok {
		return fs.Fields, true
	}
	for _, a := range rt.ViewableAttributes() {
		fields = append(fields, a)
	}
	for _, r := range rt.ViewableRelationships() {
		fields = append(fields, r)
	}
	return fields, false
}

// EffectiveInclude is the include tree extended with every nested scope
// path, since constraining a relationship implies including it.
func (s *Set) EffectiveInclude() *ast.Include {
	inc := s.Include
	for _, sc := range s.Scopes {
		if sc.Path != nil {
			inc = inc.Merge(sc.Path.Relationships())
		}
	}
	return inc
}

func (s *Set) scope(path *ast.FieldChain) *Scope {
	name := ""
	if path != nil {
		name = path.String()
	}
	if sc, ok := s.Scope(name); ok {
		return sc
	}
	sc := &Scope{Path: path}
	s.Scopes = append(s.Scopes, sc)
	return sc
}
