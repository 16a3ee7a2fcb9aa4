package store

import (
	"context"
	"fmt"

	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/querysql"
	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/value"
)

var _ plan.Provider = (*Store)(nil)

// Execute validates q, runs it against the stored objects and loads the
// relationships and includes of every result row.
func (s *Store) Execute(ctx context.Context, q *plan.Query) ([]*plan.Row, error) {
	if err := plan.Validate(q); err != nil {
		return nil, err
	}
	stmt, err := s.compiler.Select(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.run(ctx, q, stmt)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("executed query", "resource", q.Resource, "rows", len(rows))
	return rows, nil
}

// run executes stmt, then resolves the relationships and includes q
// projects for each row.
func (s *Store) run(ctx context.Context, q *plan.Query, stmt *querysql.Statement) ([]*plan.Row, error) {
	rows, err := s.scan(ctx, stmt)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := s.complete(ctx, q, row); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// scan reads every result row of stmt. Attributes the row's concrete type
// does not have are left out.
func (s *Store) scan(ctx context.Context, stmt *querysql.Statement) ([]*plan.Row, error) {
	s.logger.Debug("sql", "sql", stmt.SQL, "args", stmt.Args)

	rs, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rs.Close()

	out := []*plan.Row{}
	for rs.Next() {
		row := &plan.Row{}
		raw := make([]any, len(stmt.Attributes))
		dest := []any{&row.Type, &row.ID}
		for i := range raw {
			dest = append(dest, &raw[i])
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		rt, ok := s.reg.Type(row.Type)
		if !ok {
			return nil, fmt.Errorf("stored object %s has unknown type %q", row.ID, row.Type)
		}
		for i, name := range stmt.Attributes {
			attr, ok := rt.Attribute(name)
			if !ok {
				continue
			}
			v, err := value.FromAny(raw[i], attr.ValueType())
			if err != nil {
				return nil, fmt.Errorf("stored object %s/%s: attribute %s: %w", row.Type, row.ID, name, err)
			}
			if row.Attributes == nil {
				row.Attributes = make(map[string]value.Value)
			}
			row.Attributes[name] = v
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

func (s *Store) complete(ctx context.Context, q *plan.Query, row *plan.Row) error {
	rt, ok := s.reg.Type(row.Type)
	if !ok {
		return fmt.Errorf("unknown resource type %q", row.Type)
	}

	for _, name := range q.Projection.Relationships {
		rel, ok := rt.Relationship(name)
		if !ok {
			continue
		}
		ids, err := s.relatedIDs(ctx, rel, row.ID)
		if err != nil {
			return err
		}
		if row.Relationships == nil {
			row.Relationships = make(map[string][]string)
		}
		row.Relationships[name] = ids
	}

	for _, inc := range q.Includes {
		rel, ok := rt.Relationship(inc.Relationship)
		if !ok {
			continue
		}
		stmt, err := s.compiler.SelectRelated(inc.Query, rel, row.ID)
		if err != nil {
			return fmt.Errorf("include %s: %w", inc.Relationship, err)
		}
		included, err := s.run(ctx, inc.Query, stmt)
		if err != nil {
			return fmt.Errorf("include %s: %w", inc.Relationship, err)
		}
		if row.Included == nil {
			row.Included = make(map[string][]*plan.Row)
		}
		row.Included[inc.Relationship] = included
	}
	return nil
}

func (s *Store) relatedIDs(ctx context.Context, rel *resource.Relationship, sourceID string) ([]string, error) {
	query, args, err := s.compiler.RelatedIDs(rel, sourceID)
	if err != nil {
		return nil, fmt.Errorf("relationship %s: %w", rel.PublicName(), err)
	}
	s.logger.Debug("sql", "sql", query, "args", args)

	rs, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("relationship %s: %w", rel.PublicName(), err)
	}
	defer rs.Close()

	ids := []string{}
	for rs.Next() {
		var id string
		if err := rs.Scan(&id); err != nil {
			return nil, fmt.Errorf("relationship %s: %w", rel.PublicName(), err)
		}
		ids = append(ids, id)
	}
	return ids, rs.Err()
}
