package compile

import (
	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/constraint"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/resource"
)

// Compile builds the query for a constraint set: the primary scope's
// filter, sort, page and projection, plus one nested query per include
// path. Scope paths are included even when the include parameter omits
// them.
func (c *Compiler) Compile(set *constraint.Set) (*plan.Query, error) {
	q, err := c.scopeQuery(set, set.Resource, set.Primary())
	if err != nil {
		return nil, err
	}

	var elems []*ast.IncludeElement
	if inc := set.EffectiveInclude(); inc != nil {
		elems = inc.Elements
	}
	q, err = c.includes(set, q, elems, "")
	if err != nil {
		return nil, err
	}

	if err := plan.Validate(q); err != nil {
		return nil, &InvariantError{Node: set.Resource.PublicName(), Message: "compiled plan is invalid", Err: err}
	}
	c.logger.Debug("compiled plan",
		"resource", set.Resource.PublicName(),
		"includes", len(q.Includes),
	)
	return q, nil
}

func (c *Compiler) includes(set *constraint.Set, q *plan.Query, elems []*ast.IncludeElement, prefix string) (*plan.Query, error) {
	for _, e := range elems {
		path := e.Relationship.PublicName()
		if prefix != "" {
			path = prefix + "." + path
		}
		sc, _ := set.Scope(path)

		sub, err := c.scopeQuery(set, e.Relationship.Target(), sc)
		if err != nil {
			return nil, err
		}
		sub, err = c.includes(set, sub, e.Children, path)
		if err != nil {
			return nil, err
		}
		q = q.Include(e.Relationship.PublicName(), sub)
	}
	return q, nil
}

// scopeQuery builds the query over rt constrained by sc, which may be nil
// for an include without constraints.
func (c *Compiler) scopeQuery(set *constraint.Set, rt *resource.Type, sc *constraint.Scope) (*plan.Query, error) {
	var types []string
	for _, d := range rt.Descendants() {
		types = append(types, d.PublicName())
	}
	q := plan.NewQuery(rt.PublicName(), types...).Select(Projection(set, rt))
	if sc == nil {
		return q, nil
	}

	if sc.Filter != nil {
		filter, err := c.Filter(sc.Filter, rt)
		if err != nil {
			return nil, err
		}
		q = q.Where(filter)
	}
	if sc.Sort != nil {
		orderings, err := c.Sort(sc.Sort, rt)
		if err != nil {
			return nil, err
		}
		for i, o := range orderings {
			if i == 0 {
				q = q.OrderBy(o.Key, o.Descending)
				continue
			}
			q = q.ThenBy(o.Key, o.Descending)
		}
	}
	if sc.Page != nil && sc.Page.Size > 0 {
		q = q.Paginate((sc.Page.Number-1)*sc.Page.Size, sc.Page.Size)
	}
	return q, nil
}

// Projection lists the fields returned for objects of rt: the set's
// selection for rt, followed by the selected fields that only derived
// types declare.
func Projection(set *constraint.Set, rt *resource.Type) plan.Projection {
	var p plan.Projection
	seen := make(map[string]bool)
	add := func(f resource.Field) {
		if seen[f.PublicName()] {
			return
		}
		seen[f.PublicName()] = true
		if _, ok := f.(*resource.Relationship); ok {
			p.Relationships = append(p.Relationships, f.PublicName())
			return
		}
		p.Attributes = append(p.Attributes, f.PublicName())
	}

	fields, _ := set.Fields(rt)
	for _, f := range fields {
		add(f)
	}
	for _, d := range rt.Descendants()[1:] {
		fields, _ := set.Fields(d)
		for _, f := range fields {
			if !rt.IsA(f.DeclaringType()) {
				add(f)
			}
		}
	}
	return p
}
