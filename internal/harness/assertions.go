package harness

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
	"github.com/roach88/querymate/internal/querysql"
	"github.com/roach88/querymate/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion or expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Query    string // Query step, when the failure concerns one
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Query != "" {
		fmt.Fprintf(&buf, " (query %s)", e.Query)
	}
	buf.WriteByte('\n')

	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	Plans map[string]*queryir.Plan
}

// EvaluateAssertions evaluates all assertions.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertPlanJoins:
			err = assertPlanJoins(actx.Plans, assertion)
		case AssertSamePlan:
			err = assertSamePlan(actx.Plans, assertion)
		case AssertSQLContains:
			err = assertSQLContains(actx.Plans, assertion)
		case AssertRowCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: row_count requires database context", i)
			} else {
				err = assertRowCount(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func planFor(plans map[string]*queryir.Plan, typ, query string) (*queryir.Plan, error) {
	p, ok := plans[query]
	if !ok {
		return nil, &AssertionError{
			Type:     typ,
			Query:    query,
			Expected: "a compiled plan",
			Actual:   "query did not compile",
		}
	}
	return p, nil
}

// assertPlanJoins checks the join paths of a plan, in plan order.
func assertPlanJoins(plans map[string]*queryir.Plan, a Assertion) error {
	p, err := planFor(plans, AssertPlanJoins, a.Query)
	if err != nil {
		return err
	}

	paths := make([]string, len(p.Joins))
	for i, j := range p.Joins {
		paths[i] = j.Path
	}
	if !slices.Equal(paths, a.Joins) {
		return &AssertionError{
			Type:     AssertPlanJoins,
			Query:    a.Query,
			Expected: fmt.Sprintf("joins %v", a.Joins),
			Actual:   fmt.Sprintf("joins %v", paths),
		}
	}
	return nil
}

// assertSamePlan checks that every listed query compiled to the same plan ID.
func assertSamePlan(plans map[string]*queryir.Plan, a Assertion) error {
	first, err := planFor(plans, AssertSamePlan, a.Queries[0])
	if err != nil {
		return err
	}
	for _, q := range a.Queries[1:] {
		p, err := planFor(plans, AssertSamePlan, q)
		if err != nil {
			return err
		}
		if p.ID != first.ID {
			return &AssertionError{
				Type:     AssertSamePlan,
				Query:    q,
				Expected: fmt.Sprintf("plan %s (from %s)", first.ID, a.Queries[0]),
				Actual:   fmt.Sprintf("plan %s", p.ID),
			}
		}
	}
	return nil
}

// assertSQLContains renders a plan's row query and looks for a fragment.
func assertSQLContains(plans map[string]*queryir.Plan, a Assertion) error {
	p, err := planFor(plans, AssertSQLContains, a.Query)
	if err != nil {
		return err
	}

	dialect := querysql.SQLite
	if a.Dialect != "" {
		if dialect, err = querysql.ParseDialect(a.Dialect); err != nil {
			return err
		}
	}
	query, _, err := querysql.NewRenderer(dialect).Select(p)
	if err != nil {
		return fmt.Errorf("render %s: %w", a.Query, err)
	}
	if !strings.Contains(query, a.Contains) {
		return &AssertionError{
			Type:     AssertSQLContains,
			Query:    a.Query,
			Expected: fmt.Sprintf("%s SQL containing %q", dialect, a.Contains),
			Actual:   query,
		}
	}
	return nil
}

// assertRowCount counts fixture rows matching equality filters.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation; values are bound.
func assertRowCount(ctx context.Context, st *store.Store, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, validIdentifier.String())
	}

	b := sq.Select("COUNT(*)").From(a.Table)
	if len(a.Where) > 0 {
		eq := sq.Eq{}
		for col, v := range a.Where {
			if !validIdentifier.MatchString(col) {
				return fmt.Errorf("invalid column name %q in where clause: must match pattern %s", col, validIdentifier.String())
			}
			eq[col] = v
		}
		b = b.Where(eq)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build row_count query: %w", err)
	}

	var n int
	if err := st.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", a.Count, a.Table, formatWhereClause(a.Where)),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	// Sort keys for deterministic output
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// checkExpect compares a query's output with its expect clause.
// Returns one message per mismatch.
func checkExpect(q QueryStep, out QueryOutput) []string {
	exp := q.Expect
	if exp == nil {
		if out.Error != "" {
			return []string{fail(q.Name, "error", "success", out.Error)}
		}
		return nil
	}

	if exp.Error != "" || out.Error != "" {
		if exp.Error != out.Error {
			return []string{fail(q.Name, "error", orNone(exp.Error), orNone(out.Error))}
		}
		return nil
	}

	resp, _ := out.Response.(ir.Object)
	var errs []string

	if items, ok := resp["items"].(ir.Array); ok {
		errs = append(errs, checkItems(q.Name, "", items, exp.IDs, exp.Count, exp.Items)...)
	} else if exp.IDs != nil || exp.Count != nil || exp.Items != nil {
		errs = append(errs, fail(q.Name, "items", "an ungrouped response", "a grouped response"))
	}

	if exp.Total != nil {
		total := ir.Value(ir.Null{})
		if meta, ok := resp["pagination"].(ir.Object); ok {
			total = meta["total"]
		}
		if !valuesEqual(total, *exp.Total) {
			errs = append(errs, fail(q.Name, "total", fmt.Sprint(*exp.Total), canonical(total)))
		}
	}

	if exp.Truncated != nil && !valuesEqual(resp["truncated"], *exp.Truncated) {
		errs = append(errs, fail(q.Name, "truncated", fmt.Sprint(*exp.Truncated), canonical(resp["truncated"])))
	}

	if exp.Groups != nil {
		groups, _ := resp["groups"].(ir.Array)
		if len(groups) != len(exp.Groups) {
			errs = append(errs, fail(q.Name, "groups", fmt.Sprintf("%d groups", len(exp.Groups)), fmt.Sprintf("%d groups", len(groups))))
			return errs
		}
		for i, ge := range exp.Groups {
			g, _ := groups[i].(ir.Object)
			if !valuesEqual(g["key"], ge.Key) {
				errs = append(errs, fail(q.Name, fmt.Sprintf("groups[%d].key", i), canonicalAny(ge.Key), canonical(g["key"])))
				continue
			}
			items, _ := g["items"].(ir.Array)
			errs = append(errs, checkItems(q.Name, fmt.Sprintf("groups[%d].", i), items, ge.IDs, ge.Count, nil)...)
		}
	}

	return errs
}

func checkItems(query, where string, items ir.Array, ids []any, count *int, expected []map[string]any) []string {
	var errs []string

	if ids != nil {
		got := make([]any, len(items))
		for i, item := range items {
			obj, _ := item.(ir.Object)
			got[i] = obj["id"]
		}
		if !valuesEqual(ir.Array(toValues(got)), ids) {
			errs = append(errs, fail(query, where+"ids", canonicalAny(ids), canonicalAny(got)))
		}
	}

	if count != nil && len(items) != *count {
		errs = append(errs, fail(query, where+"count", fmt.Sprint(*count), fmt.Sprint(len(items))))
	}

	if expected != nil {
		if len(items) != len(expected) {
			return append(errs, fail(query, where+"items", fmt.Sprintf("%d items", len(expected)), fmt.Sprintf("%d items", len(items))))
		}
		for i, want := range expected {
			obj, _ := items[i].(ir.Object)
			if !matchItem(obj, want) {
				errs = append(errs, fail(query, fmt.Sprintf("%sitems[%d]", where, i), canonicalAny(want), canonical(obj)))
			}
		}
	}
	return errs
}

// matchItem checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored; nested values must match exactly.
func matchItem(actual ir.Object, expected map[string]any) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares an actual response value with a YAML expectation by
// canonical JSON, so 36 (int) equals 36 (decoded Int) and key order is
// irrelevant.
func valuesEqual(actual ir.Value, expected any) bool {
	want, err := ir.FromAny(expected)
	if err != nil {
		return false
	}
	a, err := ir.MarshalCanonical(actual)
	if err != nil {
		return false
	}
	b, err := ir.MarshalCanonical(want)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

func toValues(vals []any) []ir.Value {
	out := make([]ir.Value, len(vals))
	for i, v := range vals {
		if iv, ok := v.(ir.Value); ok {
			out[i] = iv
		} else {
			out[i] = ir.Null{}
		}
	}
	return out
}

func canonical(v ir.Value) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func canonicalAny(v any) string {
	iv, err := ir.FromAny(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return canonical(iv)
}

func fail(query, field, expected, actual string) string {
	return (&AssertionError{
		Type:     "expect." + field,
		Query:    query,
		Expected: expected,
		Actual:   actual,
	}).Error()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
