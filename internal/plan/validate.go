package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/apiquery/internal/value"
)

// ValidationError lists the structural problems found in a query.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid plan: " + strings.Join(e.Problems, "; ")
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks that q is well formed before a provider executes it:
// lambdas reference only bound parameters, to-many members only appear as
// aggregate sources, filters are boolean and sums are numeric.
//
// Validate is a pure function with no side effects.
func Validate(q *Query) error {
	v := &validator{}
	v.validateQuery(q, "query")
	if len(v.problems) > 0 {
		return &ValidationError{Problems: v.problems}
	}
	return nil
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q *Query, path string) {
	if q == nil {
		v.addProblem("%s: nil query", path)
		return
	}
	if q.Resource == "" {
		v.addProblem("%s: empty resource", path)
	}
	if len(q.Types) == 0 {
		v.addProblem("%s: no concrete types", path)
	}
	if q.Skip < 0 || q.Take < 0 {
		v.addProblem("%s: negative page window", path)
	}

	if q.Filter != nil {
		v.validateRootLambda(q, q.Filter, path+".filter")
		if t := q.Filter.Body.Type(); t != value.TypeBool {
			v.addProblem("%s.filter: body has type %s, want Bool", path, t)
		}
	}
	for i, o := range q.Order {
		p := fmt.Sprintf("%s.order[%d]", path, i)
		if o.Key == nil {
			v.addProblem("%s: nil key", p)
			continue
		}
		v.validateRootLambda(q, o.Key, p)
	}
	seen := make(map[string]bool)
	for _, inc := range q.Includes {
		if seen[inc.Relationship] {
			v.addProblem("%s: relationship %q included twice", path, inc.Relationship)
		}
		seen[inc.Relationship] = true
		v.validateQuery(inc.Query, path+".include."+inc.Relationship)
	}
}

func (v *validator) validateRootLambda(q *Query, l *Lambda, path string) {
	if l.Param == nil {
		v.addProblem("%s: lambda without parameter", path)
		return
	}
	if l.Param.Resource != q.Resource {
		v.addProblem("%s: parameter %s bound to %s, want %s", path, l.Param.Name, l.Param.Resource, q.Resource)
	}
	v.validateExpr(l.Body, map[*Param]bool{l.Param: true}, path)
}

func (v *validator) validateExpr(e Expr, scope map[*Param]bool, path string) {
	switch n := e.(type) {
	case nil:
		v.addProblem("%s: nil expression", path)
	case *Param:
		if !scope[n] {
			v.addProblem("%s: parameter %s is not in scope", path, n.Name)
		}
	case *Const:
		if n.Value == nil {
			v.addProblem("%s: constant without value", path)
		}
	case *Member:
		if n.Kind == MemberToMany {
			v.addProblem("%s: to-many member %s outside an aggregate", path, n)
		}
		v.validateTarget(n, scope, path)
	case *Compare:
		v.validateExpr(n.Left, scope, path)
		v.validateExpr(n.Right, scope, path)
	case *Logical:
		for _, o := range n.Operands {
			v.validateExpr(o, scope, path)
		}
	case *Not:
		v.validateExpr(n.Operand, scope, path)
	case *StringMatch:
		v.validateExpr(n.Target, scope, path)
	case *In:
		v.validateExpr(n.Target, scope, path)
	case *Aggregate:
		v.validateAggregate(n, scope, path)
	case *TypeIs:
		if len(n.Types) == 0 {
			v.addProblem("%s: type test without types", path)
		}
		v.validateExpr(n.Target, scope, path)
	case *Call:
		for _, a := range n.Args {
			v.validateExpr(a, scope, path)
		}
	case *Lambda:
		v.addProblem("%s: lambda outside an aggregate", path)
	default:
		v.addProblem("%s: unknown expression type %T", path, e)
	}
}

func (v *validator) validateTarget(m *Member, scope map[*Param]bool, path string) {
	if inner, ok := m.Target.(*Member); ok && inner.Kind == MemberAttribute {
		v.addProblem("%s: member access on attribute %s", path, inner)
		return
	}
	v.validateExpr(m.Target, scope, path)
}

func (v *validator) validateAggregate(a *Aggregate, scope map[*Param]bool, path string) {
	if a.Source == nil || a.Source.Kind != MemberToMany {
		v.addProblem("%s: %s source must be a to-many member", path, a.Op)
		return
	}
	v.validateTarget(a.Source, scope, path)

	switch {
	case a.Op == Sum && a.Lambda == nil:
		v.addProblem("%s: sum without selector", path)
		return
	case a.Op == Count && a.Lambda != nil:
		v.addProblem("%s: count does not take a lambda", path)
		return
	case a.Lambda == nil:
		return
	}

	if a.Lambda.Param == nil {
		v.addProblem("%s: lambda without parameter", path)
		return
	}
	if a.Lambda.Param.Resource != a.Source.Related {
		v.addProblem("%s: parameter %s bound to %s, want %s", path, a.Lambda.Param.Name, a.Lambda.Param.Resource, a.Source.Related)
	}
	inner := make(map[*Param]bool, len(scope)+1)
	for p := range scope {
		inner[p] = true
	}
	inner[a.Lambda.Param] = true
	v.validateExpr(a.Lambda.Body, inner, path)

	t := a.Lambda.Body.Type()
	switch {
	case a.Op == Sum && !t.IsNumeric():
		v.addProblem("%s: sum selector has type %s, want a numeric type", path, t)
	case a.Op == Any && t != value.TypeBool:
		v.addProblem("%s: any predicate has type %s, want Bool", path, t)
	}
}
