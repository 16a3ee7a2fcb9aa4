package compile

import (
	"fmt"

	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/resource"
)

// Scope is one link of the lambda scope chain. Field chains compile
// relative to Object, the expression for the current resource object.
//
// Scopes are immutable: Enter and Narrow return new links, so sibling
// branches of an expression never observe each other's bindings.
type Scope struct {
	parent   *Scope
	param    *plan.Param
	object   plan.Expr
	resource *resource.Type
	depth    int
}

// NewRootScope binds the lambda parameter "p0" to objects of rt.
func NewRootScope(rt *resource.Type) *Scope {
	p := &plan.Param{Name: "p0", Resource: rt.PublicName()}
	return &Scope{param: p, object: p, resource: rt}
}

// Enter returns a nested scope with a fresh parameter bound to the
// elements of a collection of rt.
func (s *Scope) Enter(rt *resource.Type) *Scope {
	depth := s.depth + 1
	p := &plan.Param{Name: fmt.Sprintf("p%d", depth), Resource: rt.PublicName()}
	return &Scope{parent: s, param: p, object: p, resource: rt, depth: depth}
}

// Narrow returns a scope that keeps the current parameter but resolves
// fields against object, typed as rt. isType uses it for derived-type
// filters on a to-one target.
func (s *Scope) Narrow(object plan.Expr, rt *resource.Type) *Scope {
	return &Scope{parent: s.parent, param: s.param, object: object, resource: rt, depth: s.depth}
}

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Param returns the lambda parameter of the scope.
func (s *Scope) Param() *plan.Param { return s.param }

// Object returns the expression field chains start from.
func (s *Scope) Object() plan.Expr { return s.object }

// Resource returns the type of Object.
func (s *Scope) Resource() *resource.Type { return s.resource }

// Depth is the number of collections entered from the root.
func (s *Scope) Depth() int { return s.depth }

// Lambda wraps body in a lambda over the scope's parameter.
func (s *Scope) Lambda(body plan.Expr) *plan.Lambda {
	return &plan.Lambda{Param: s.param, Body: body}
}
