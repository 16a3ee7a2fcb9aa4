package memsource

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/roach88/apiquery/internal/dataset"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/value"
)

// binding maps lambda parameters to objects. Each lambda extends its
// parent's binding, so outer parameters stay visible in nested lambdas.
type binding struct {
	param  *plan.Param
	obj    *dataset.Object
	parent *binding
}

func (b *binding) lookup(p *plan.Param) (*dataset.Object, bool) {
	for c := b; c != nil; c = c.parent {
		if c.param == p {
			return c.obj, true
		}
	}
	return nil, false
}

type evaluator struct {
	data *dataset.Dataset
}

// apply evaluates l with its parameter bound to obj.
func (ev *evaluator) apply(l *plan.Lambda, obj *dataset.Object) (value.Value, error) {
	return ev.value(l.Body, &binding{param: l.Param, obj: obj})
}

func (ev *evaluator) predicate(l *plan.Lambda, obj *dataset.Object) (bool, error) {
	return ev.truth(l.Body, &binding{param: l.Param, obj: obj})
}

func (ev *evaluator) truth(e plan.Expr, b *binding) (bool, error) {
	v, err := ev.value(e, b)
	if err != nil {
		return false, err
	}
	t, ok := v.(value.Bool)
	return ok && bool(t), nil
}

// object evaluates an object-valued expression. A null to-one relationship
// yields nil.
func (ev *evaluator) object(e plan.Expr, b *binding) (*dataset.Object, error) {
	switch n := e.(type) {
	case *plan.Param:
		obj, ok := b.lookup(n)
		if !ok {
			return nil, fmt.Errorf("memsource: parameter %s is not bound", n.Name)
		}
		return obj, nil
	case *plan.Member:
		if n.Kind != plan.MemberToOne {
			return nil, fmt.Errorf("memsource: %s is not a to-one relationship", n)
		}
		parent, err := ev.object(n.Target, b)
		if err != nil || parent == nil {
			return nil, err
		}
		rel, ok := relationship(parent, n)
		if !ok {
			return nil, nil
		}
		related := ev.data.Related(parent, rel)
		if len(related) == 0 {
			return nil, nil
		}
		return related[0], nil
	}
	return nil, fmt.Errorf("memsource: %s is not an object expression", e)
}

// collection evaluates a to-many member.
func (ev *evaluator) collection(m *plan.Member, b *binding) ([]*dataset.Object, error) {
	parent, err := ev.object(m.Target, b)
	if err != nil || parent == nil {
		return nil, err
	}
	rel, ok := relationship(parent, m)
	if !ok {
		return nil, nil
	}
	return ev.data.Related(parent, rel), nil
}

func (ev *evaluator) value(e plan.Expr, b *binding) (value.Value, error) {
	switch n := e.(type) {
	case *plan.Const:
		return n.Value, nil

	case *plan.Member:
		if n.Kind != plan.MemberAttribute {
			return nil, fmt.Errorf("memsource: %s is not an attribute", n)
		}
		obj, err := ev.object(n.Target, b)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			return value.Null{}, nil
		}
		return obj.Attribute(n.Field), nil

	case *plan.Compare:
		return ev.compare(n, b)

	case *plan.Logical:
		stop := n.Op == plan.Or
		for _, o := range n.Operands {
			t, err := ev.truth(o, b)
			if err != nil {
				return nil, err
			}
			if t == stop {
				return value.Bool(stop), nil
			}
		}
		return value.Bool(!stop), nil

	case *plan.Not:
		t, err := ev.truth(n.Operand, b)
		if err != nil {
			return nil, err
		}
		return value.Bool(!t), nil

	case *plan.StringMatch:
		v, err := ev.value(n.Target, b)
		if err != nil {
			return nil, err
		}
		s, ok := v.(value.String)
		if !ok {
			return value.Bool(false), nil
		}
		return value.Bool(match(n.Kind, string(s), n.Pattern)), nil

	case *plan.In:
		v, err := ev.value(n.Target, b)
		if err != nil {
			return nil, err
		}
		if value.IsNull(v) {
			return value.Bool(false), nil
		}
		return value.Bool(slices.ContainsFunc(n.Values, func(c value.Value) bool {
			return value.Equal(v, c)
		})), nil

	case *plan.Aggregate:
		return ev.aggregate(n, b)

	case *plan.TypeIs:
		obj, err := ev.object(n.Target, b)
		if err != nil {
			return nil, err
		}
		return value.Bool(obj != nil && slices.Contains(n.Types, obj.Type.PublicName())), nil

	case *plan.Call:
		return ev.call(n, b)
	}
	return nil, fmt.Errorf("memsource: cannot evaluate %T", e)
}

func (ev *evaluator) compare(n *plan.Compare, b *binding) (value.Value, error) {
	left, err := ev.value(n.Left, b)
	if err != nil {
		return nil, err
	}
	right, err := ev.value(n.Right, b)
	if err != nil {
		return nil, err
	}

	if plan.IsNullConst(n.Right) || plan.IsNullConst(n.Left) {
		isNull := value.IsNull(left) && value.IsNull(right)
		switch n.Op {
		case plan.Eq:
			return value.Bool(isNull), nil
		case plan.Ne:
			return value.Bool(!isNull), nil
		}
		return value.Bool(false), nil
	}
	if value.IsNull(left) || value.IsNull(right) {
		return value.Bool(false), nil
	}

	c, ok := value.Compare(left, right)
	if !ok {
		return value.Bool(false), nil
	}
	var r bool
	switch n.Op {
	case plan.Eq:
		r = c == 0
	case plan.Ne:
		r = c != 0
	case plan.Gt:
		r = c > 0
	case plan.Ge:
		r = c >= 0
	case plan.Lt:
		r = c < 0
	case plan.Le:
		r = c <= 0
	}
	return value.Bool(r), nil
}

func match(kind plan.MatchKind, s, pattern string) bool {
	switch kind {
	case plan.StartsWith:
		return strings.HasPrefix(s, pattern)
	case plan.EndsWith:
		return strings.HasSuffix(s, pattern)
	default:
		return strings.Contains(s, pattern)
	}
}

func (ev *evaluator) aggregate(n *plan.Aggregate, b *binding) (value.Value, error) {
	elems, err := ev.collection(n.Source, b)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case plan.Count:
		return value.Int(len(elems)), nil

	case plan.Any:
		if n.Lambda == nil {
			return value.Bool(len(elems) > 0), nil
		}
		for _, elem := range elems {
			ok, err := ev.truth(n.Lambda.Body, &binding{param: n.Lambda.Param, obj: elem, parent: b})
			if err != nil {
				return nil, err
			}
			if ok {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil

	case plan.Sum:
		var ints int64
		var floats float64
		for _, elem := range elems {
			v, err := ev.value(n.Lambda.Body, &binding{param: n.Lambda.Param, obj: elem, parent: b})
			if err != nil {
				return nil, err
			}
			switch x := v.(type) {
			case value.Int:
				ints += int64(x)
			case value.Float:
				floats += float64(x)
			}
		}
		if n.Type() == value.TypeFloat {
			return value.Float(floats + float64(ints)), nil
		}
		return value.Int(ints), nil
	}
	return nil, fmt.Errorf("memsource: unknown aggregate %q", n.Op)
}

func (ev *evaluator) call(n *plan.Call, b *binding) (value.Value, error) {
	if len(n.Args) != 1 {
		return nil, fmt.Errorf("memsource: %s takes one argument", n.Func)
	}
	v, err := ev.value(n.Args[0], b)
	if err != nil {
		return nil, err
	}
	s, ok := v.(value.String)
	if !ok {
		return value.Null{}, nil
	}
	switch n.Func {
	case plan.Upper:
		return value.NewString(strings.ToUpper(string(s))), nil
	case plan.Lower:
		return value.NewString(strings.ToLower(string(s))), nil
	case plan.Length:
		return value.Int(utf8.RuneCountInString(string(s))), nil
	}
	return nil, fmt.Errorf("memsource: unknown function %q", n.Func)
}
