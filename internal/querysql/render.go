// Package querysql renders query plans to parameterized SQL.
//
// Every statement is built with squirrel, so operands always travel as
// bound arguments and placeholders follow the dialect (? for SQLite, $n for
// PostgreSQL). Row-returning statements always end with the root primary
// key as a tie breaker, which makes result order deterministic.
package querysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
)

// Result column names used by group statements.
const (
	GroupColumn = "qm_group"
	TotalColumn = "qm_total"
)

// Renderer renders plans for one dialect. It is stateless and safe for
// concurrent use.
type Renderer struct {
	dialect Dialect
}

// NewRenderer returns a renderer for a dialect.
func NewRenderer(d Dialect) *Renderer {
	return &Renderer{dialect: d}
}

// Dialect returns the renderer's dialect.
func (r *Renderer) Dialect() Dialect {
	return r.dialect
}

// Select renders the row query for a plan and its window.
func (r *Renderer) Select(p *queryir.Plan) (string, []any, error) {
	return r.selectWindow(p, nil, p.Window.Limit, p.Window.Offset)
}

// GroupSelect renders the row query for one group: the plan's filter plus
// group-key equality, with an explicit window.
func (r *Renderer) GroupSelect(p *queryir.Plan, key any, limit, offset int) (string, []any, error) {
	if p.Group == nil {
		return "", nil, fmt.Errorf("plan %s is not grouped", p.Entity)
	}
	expr, args := r.dialect.groupExpr(p.Group)
	var cond sq.Sqlizer
	if key == nil {
		cond = sq.Expr(expr+" IS NULL", args...)
	} else {
		cond = sq.Expr(expr+" = ?", append(args, key)...)
	}
	return r.selectWindow(p, cond, limit, offset)
}

// Count renders the number of distinct root records matching the plan.
func (r *Renderer) Count(p *queryir.Plan) (string, []any, error) {
	b := sq.Select(fmt.Sprintf("COUNT(DISTINCT %s) AS %s", r.rootKey(p), quote(TotalColumn)))
	b, err := r.base(b, p)
	if err != nil {
		return "", nil, err
	}
	return r.finish(b)
}

// GroupCounts renders one row per group key: the key (GroupColumn) and the
// number of distinct root records in it (TotalColumn), in ascending key order.
func (r *Renderer) GroupCounts(p *queryir.Plan) (string, []any, error) {
	if p.Group == nil {
		return "", nil, fmt.Errorf("plan %s is not grouped", p.Entity)
	}
	expr, args := r.dialect.groupExpr(p.Group)

	b := sq.Select().
		Column(sq.Expr(expr+" AS "+quote(GroupColumn), args...)).
		Column(fmt.Sprintf("COUNT(DISTINCT %s) AS %s", r.rootKey(p), quote(TotalColumn)))
	b, err := r.base(b, p)
	if err != nil {
		return "", nil, err
	}
	return r.finish(b.GroupBy("1").OrderBy("1"))
}

func (r *Renderer) selectWindow(p *queryir.Plan, extra sq.Sqlizer, limit, offset int) (string, []any, error) {
	fields := p.Columns()
	cols := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		cols = append(cols, column(f)+" AS "+quote(f.Path))
	}
	if len(cols) == 0 {
		cols = append(cols, r.rootKey(p)+" AS "+quote(p.PrimaryKey))
	}

	b, err := r.base(sq.Select(cols...), p)
	if err != nil {
		return "", nil, err
	}
	if extra != nil {
		b = b.Where(extra)
	}

	b, err = r.order(b, p)
	if err != nil {
		return "", nil, err
	}
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return r.finish(b.Limit(uint64(limit)).Offset(uint64(offset)))
}

// base validates the plan and adds FROM, joins and the predicate.
func (r *Renderer) base(b sq.SelectBuilder, p *queryir.Plan) (sq.SelectBuilder, error) {
	if err := queryir.Validate(p).Err(); err != nil {
		return b, err
	}
	b = b.From(quote(p.Table))
	for _, j := range p.Joins {
		b = b.JoinClause(joinClause(j))
	}
	if p.Predicate != nil {
		cond, err := r.dialect.where(p.Predicate)
		if err != nil {
			return b, fmt.Errorf("render predicate: %w", err)
		}
		b = b.Where(cond)
	}
	return b, nil
}

func joinClause(j queryir.JoinSpec) string {
	kind := "JOIN"
	if j.Kind == queryir.JoinLeft {
		kind = "LEFT JOIN"
	}
	return fmt.Sprintf("%s %s AS %s ON %s.%s = %s.%s",
		kind, quote(j.Table), quote(j.Alias),
		quote(j.SourceAlias), quote(j.LocalKey),
		quote(j.Alias), quote(j.ForeignKey))
}

// order adds the sort keys followed by the primary-key tie breaker.
func (r *Renderer) order(b sq.SelectBuilder, p *queryir.Plan) (sq.SelectBuilder, error) {
	sortedOnKey := false
	for _, k := range p.Sort {
		dir := "ASC"
		if k.Direction == queryir.Desc {
			dir = "DESC"
		}
		col := column(k.Field)

		if len(k.CustomOrder) == 0 {
			b = b.OrderBy(col + " " + dir)
			if k.Field.Alias == p.Table && k.Field.Column == p.PrimaryKey {
				sortedOnKey = true
			}
			continue
		}

		expr, args, err := r.rankCase(col, k.CustomOrder)
		if err != nil {
			return b, err
		}
		b = b.OrderByClause(expr+" "+dir, args...)
	}
	if !sortedOnKey {
		b = b.OrderBy(r.rootKey(p) + " ASC")
	}
	return b, nil
}

// rankCase renders a custom value order: CustomOrder[i] ranks i, anything
// else ranks len(CustomOrder).
func (r *Renderer) rankCase(col string, values []ir.Value) (string, []any, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("CASE")
	for i, v := range values {
		if ir.IsNull(v) {
			fmt.Fprintf(&sb, " WHEN %s IS NULL THEN %d", col, i)
			continue
		}
		arg, err := r.dialect.param(v)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&sb, " WHEN %s = ? THEN %d", col, i)
		args = append(args, arg)
	}
	fmt.Fprintf(&sb, " ELSE %d END", len(values))
	return sb.String(), args, nil
}

func (r *Renderer) rootKey(p *queryir.Plan) string {
	return quote(p.Table) + "." + quote(p.PrimaryKey)
}

func (r *Renderer) finish(b sq.SelectBuilder) (string, []any, error) {
	query, args, err := b.PlaceholderFormat(r.dialect.placeholders()).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("render sql: %w", err)
	}
	return query, args, nil
}
