package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/queryir"
)

// Fetch returns the rows of a plan's window, keyed by projection path.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Fetch(ctx context.Context, p *queryir.Plan) ([]queryir.Row, error) {
	query, args, err := s.renderer.Select(p)
	if err != nil {
		return nil, err
	}
	return s.queryRows(ctx, p, query, args)
}

// FetchGroup returns one group's rows with an explicit window.
func (s *Store) FetchGroup(ctx context.Context, p *queryir.Plan, key any, limit, offset int) ([]queryir.Row, error) {
	query, args, err := s.renderer.GroupSelect(p, key, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.queryRows(ctx, p, query, args)
}

// Count returns the number of distinct root records matching the plan.
func (s *Store) Count(ctx context.Context, p *queryir.Plan) (int, error) {
	query, args, err := s.renderer.Count(p)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", p.Entity, err)
	}
	return n, nil
}

// GroupCounts returns every group key with its distinct root count, in
// ascending key order.
func (s *Store) GroupCounts(ctx context.Context, p *queryir.Plan) ([]queryir.GroupCount, error) {
	query, args, err := s.renderer.GroupCounts(p)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	groups := []queryir.GroupCount{}
	for rows.Next() {
		var (
			key   any
			total int
		)
		if err := rows.Scan(&key, &total); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, queryir.GroupCount{Key: normalize(key, p.Group.Field.Type), Total: total})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

func (s *Store) queryRows(ctx context.Context, p *queryir.Plan, query string, args []any) ([]queryir.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.Entity, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	fields := p.Columns()
	types := make([]catalog.FieldType, len(cols))
	for i, name := range cols {
		for _, f := range fields {
			if f.Path == name {
				types[i] = f.Type
				break
			}
		}
	}

	out := []queryir.Row{}
	for rows.Next() {
		row, err := scanRow(rows, cols, types)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", p.Entity, err)
	}
	return out, nil
}

func scanRow(rows *sql.Rows, cols []string, types []catalog.FieldType) (queryir.Row, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	row := make(queryir.Row, len(cols))
	for i, name := range cols {
		row[name] = normalize(values[i], types[i])
	}
	return row, nil
}

// normalize maps driver values onto the field's semantic type: text comes
// back as string, and integer-encoded booleans as bool.
func normalize(v any, t catalog.FieldType) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case int64:
		if t == catalog.TypeBoolean {
			return val != 0
		}
	}
	return v
}
