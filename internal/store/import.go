package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/apiquery/internal/dataset"
	"github.com/roach88/apiquery/internal/querysql"
	"github.com/roach88/apiquery/internal/value"
)

// Import replaces every stored object with the objects of d, in one
// transaction. Objects are inserted in collection order, which becomes
// the tiebreak order of queries; relationship ids keep their order.
//
// d must be built over the store's registry and pass Validate.
func (s *Store) Import(ctx context.Context, d *dataset.Dataset) error {
	if d.Registry() != s.reg {
		return fmt.Errorf("import: dataset uses a different registry")
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range querysql.Tables(s.reg) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("import: clear %s: %w", table, err)
		}
	}

	links := 0
	for _, obj := range d.Objects() {
		cols, err := querysql.Columns(obj.Type.Root())
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		names := []string{"_type", "id"}
		vals := []any{obj.Type.PublicName(), obj.ID}
		for _, a := range cols {
			names = append(names, querysql.Quote(a.PublicName()))
			vals = append(vals, value.ToSQL(obj.Attribute(a.PublicName())))
		}
		query, args, err := sq.Insert(querysql.Table(obj.Type)).Columns(names...).Values(vals...).ToSql()
		if err != nil {
			return fmt.Errorf("import: build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("import: insert %s/%s: %w", obj.Type.PublicName(), obj.ID, err)
		}

		for _, rel := range obj.Type.Relationships() {
			for i, target := range obj.Relationships[rel.PublicName()] {
				query, args, err := sq.Insert(querysql.LinkTable(rel)).
					Columns("source_id", "target_id", "ordinal").
					Values(obj.ID, target, i).
					ToSql()
				if err != nil {
					return fmt.Errorf("import: build link insert: %w", err)
				}
				if _, err := tx.ExecContext(ctx, query, args...); err != nil {
					return fmt.Errorf("import: link %s/%s.%s: %w", obj.Type.PublicName(), obj.ID, rel.PublicName(), err)
				}
				links++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import: commit: %w", err)
	}
	s.logger.Info("dataset imported", "objects", d.Len(), "links", links)
	return nil
}
