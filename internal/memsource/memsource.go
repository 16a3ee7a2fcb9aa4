// Package memsource executes plans over an in-memory dataset.
//
// Evaluation follows the plan's null rules: a comparison with the Null
// constant tests for null, any other comparison with a null operand is
// false, and null sorts before every other value. Navigating a null to-one
// relationship yields null attributes and empty collections.
package memsource

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/apiquery/internal/dataset"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/value"
)

// Source is a plan.Provider over a dataset.
//
// Thread-safety: safe for concurrent use as long as the dataset is not
// modified.
type Source struct {
	data   *dataset.Dataset
	logger *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used for query diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// New creates a Source over d.
func New(d *dataset.Dataset, opts ...Option) *Source {
	s := &Source{data: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ plan.Provider = (*Source)(nil)

// Execute validates q and evaluates it against the dataset.
func (s *Source) Execute(ctx context.Context, q *plan.Query) ([]*plan.Row, error) {
	if err := plan.Validate(q); err != nil {
		return nil, err
	}
	rt, ok := s.data.Registry().Type(q.Resource)
	if !ok {
		return nil, fmt.Errorf("memsource: unknown resource type %q", q.Resource)
	}
	rows, err := s.run(ctx, q, s.data.Collection(rt))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("executed query", "resource", q.Resource, "rows", len(rows))
	return rows, nil
}

// run applies q to objs: type restriction, filter, order, page window,
// projection and includes.
func (s *Source) run(ctx context.Context, q *plan.Query, objs []*dataset.Object) ([]*plan.Row, error) {
	ev := &evaluator{data: s.data}

	var matched []*dataset.Object
	for _, obj := range objs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !slices.Contains(q.Types, obj.Type.PublicName()) {
			continue
		}
		if q.Filter != nil {
			ok, err := ev.predicate(q.Filter, obj)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, obj)
	}

	matched, err := s.order(ev, q.Order, matched)
	if err != nil {
		return nil, err
	}
	matched = window(matched, q.Skip, q.Take)

	rows := make([]*plan.Row, 0, len(matched))
	for _, obj := range matched {
		row, err := s.project(ctx, q, obj)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// order sorts objs stably, so ties keep collection order.
func (s *Source) order(ev *evaluator, order []plan.Ordering, objs []*dataset.Object) ([]*dataset.Object, error) {
	if len(order) == 0 || len(objs) < 2 {
		return objs, nil
	}

	keys := make(map[*dataset.Object][]value.Value, len(objs))
	for _, obj := range objs {
		k := make([]value.Value, len(order))
		for i, o := range order {
			v, err := ev.apply(o.Key, obj)
			if err != nil {
				return nil, err
			}
			k[i] = v
		}
		keys[obj] = k
	}

	sorted := slices.Clone(objs)
	slices.SortStableFunc(sorted, func(a, b *dataset.Object) int {
		ka, kb := keys[a], keys[b]
		for i, o := range order {
			c, _ := value.Compare(ka[i], kb[i])
			if o.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return sorted, nil
}

func window(objs []*dataset.Object, skip, take int) []*dataset.Object {
	if skip >= len(objs) {
		return nil
	}
	objs = objs[skip:]
	if take > 0 && take < len(objs) {
		objs = objs[:take]
	}
	return objs
}

// project builds the row for obj. Projected fields the object's concrete
// type does not have are left out.
func (s *Source) project(ctx context.Context, q *plan.Query, obj *dataset.Object) (*plan.Row, error) {
	row := &plan.Row{Type: obj.Type.PublicName(), ID: obj.ID}

	for _, name := range q.Projection.Attributes {
		if name == "id" {
			continue
		}
		if _, ok := obj.Type.Attribute(name); !ok {
			continue
		}
		if row.Attributes == nil {
			row.Attributes = make(map[string]value.Value)
		}
		row.Attributes[name] = obj.Attribute(name)
	}

	for _, name := range q.Projection.Relationships {
		rel, ok := obj.Type.Relationship(name)
		if !ok {
			continue
		}
		if row.Relationships == nil {
			row.Relationships = make(map[string][]string)
		}
		row.Relationships[name] = dataset.IDs(s.data.Related(obj, rel))
	}

	for _, inc := range q.Includes {
		rel, ok := obj.Type.Relationship(inc.Relationship)
		if !ok {
			continue
		}
		included, err := s.run(ctx, inc.Query, s.data.Related(obj, rel))
		if err != nil {
			return nil, fmt.Errorf("include %s: %w", inc.Relationship, err)
		}
		if row.Included == nil {
			row.Included = make(map[string][]*plan.Row)
		}
		row.Included[inc.Relationship] = included
	}
	return row, nil
}

// relationship resolves a relationship member against the concrete type of
// obj. Members declared by a derived type are absent on other types.
func relationship(obj *dataset.Object, m *plan.Member) (*resource.Relationship, bool) {
	return obj.Type.Relationship(m.Field)
}
