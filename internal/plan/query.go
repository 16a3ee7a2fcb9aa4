package plan

import (
	"context"
	"slices"

	"github.com/roach88/apiquery/internal/value"
)

// Ordering sorts by the value Key selects. Ties fall through to the next
// ordering, then to source order.
type Ordering struct {
	Key        *Lambda
	Descending bool
}

// Projection lists the fields returned for each object.
type Projection struct {
	Attributes    []string
	Relationships []string
}

// Include loads the objects of Relationship for every result object,
// shaped by Query. Query's filter, ordering and page window apply per
// parent object.
type Include struct {
	Relationship string
	Query        *Query
}

// Query is a deferred query over the collection of Resource.
//
// Types lists the concrete resource types the collection holds: Resource
// itself and its descendants. Take 0 means unlimited.
type Query struct {
	Resource   string
	Types      []string
	Filter     *Lambda
	Order      []Ordering
	Skip       int
	Take       int
	Projection Projection
	Includes   []Include
}

// NewQuery returns an unconstrained query over resource and its concrete
// types.
func NewQuery(resource string, types ...string) *Query {
	if len(types) == 0 {
		types = []string{resource}
	}
	return &Query{Resource: resource, Types: types}
}

func (q *Query) clone() *Query {
	c := *q
	c.Types = slices.Clone(q.Types)
	c.Order = slices.Clone(q.Order)
	c.Projection = Projection{
		Attributes:    slices.Clone(q.Projection.Attributes),
		Relationships: slices.Clone(q.Projection.Relationships),
	}
	c.Includes = slices.Clone(q.Includes)
	return &c
}

// Where returns a query that also requires filter. An existing filter is
// combined with && and keeps its parameter.
func (q *Query) Where(filter *Lambda) *Query {
	c := q.clone()
	if q.Filter == nil {
		c.Filter = filter
		return c
	}
	body := Substitute(filter.Body, filter.Param, q.Filter.Param)
	c.Filter = &Lambda{
		Param: q.Filter.Param,
		Body:  &Logical{Op: And, Operands: []Expr{q.Filter.Body, body}},
	}
	return c
}

// OrderBy returns a query ordered by key alone.
func (q *Query) OrderBy(key *Lambda, descending bool) *Query {
	c := q.clone()
	c.Order = []Ordering{{Key: key, Descending: descending}}
	return c
}

// ThenBy returns a query with key appended as a tie-breaker.
func (q *Query) ThenBy(key *Lambda, descending bool) *Query {
	c := q.clone()
	c.Order = append(c.Order, Ordering{Key: key, Descending: descending})
	return c
}

// Paginate returns a query limited to the window [skip, skip+take).
func (q *Query) Paginate(skip, take int) *Query {
	c := q.clone()
	c.Skip, c.Take = skip, take
	return c
}

// Select returns a query returning only the projected fields.
func (q *Query) Select(p Projection) *Query {
	c := q.clone()
	c.Projection = Projection{
		Attributes:    slices.Clone(p.Attributes),
		Relationships: slices.Clone(p.Relationships),
	}
	return c
}

// Include returns a query that loads relationship with sub. An existing
// include of the same relationship is replaced in place.
func (q *Query) Include(relationship string, sub *Query) *Query {
	c := q.clone()
	for i, inc := range c.Includes {
		if inc.Relationship == relationship {
			c.Includes[i] = Include{Relationship: relationship, Query: sub}
			return c
		}
	}
	c.Includes = append(c.Includes, Include{Relationship: relationship, Query: sub})
	return c
}

// Row is one result object.
//
// Attributes holds projected attributes. Relationships holds the ids of
// every related object for each projected relationship. Included holds
// the rows loaded by each Include.
type Row struct {
	Type          string                 `json:"type"`
	ID            string                 `json:"id"`
	Attributes    map[string]value.Value `json:"attributes,omitempty"`
	Relationships map[string][]string    `json:"relationships,omitempty"`
	Included      map[string][]*Row      `json:"included,omitempty"`
}

// Provider executes queries against a data source.
type Provider interface {
	Execute(ctx context.Context, q *Query) ([]*Row, error)
}
