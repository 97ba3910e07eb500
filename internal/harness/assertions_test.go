package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/querymate/internal/ir"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		actual   ir.Value
		expected any
		want     bool
	}{
		{"int", ir.Int(36), 36, true},
		{"int mismatch", ir.Int(36), 37, false},
		{"string", ir.String("Ada"), "Ada", true},
		{"null", ir.Null{}, nil, true},
		{"null vs zero", ir.Null{}, 0, false},
		{"bool", ir.Bool(true), true, true},
		{"array", ir.Array{ir.Int(1), ir.Int(2)}, []any{1, 2}, true},
		{"array order", ir.Array{ir.Int(1), ir.Int(2)}, []any{2, 1}, false},
		{
			"object key order",
			ir.Object{"b": ir.Int(2), "a": ir.String("x")},
			map[string]any{"a": "x", "b": 2},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesEqual(tt.actual, tt.expected))
		})
	}
}

func TestMatchItem(t *testing.T) {
	item := ir.Object{
		"id":    ir.Int(1),
		"name":  ir.String("Ada"),
		"posts": ir.Array{ir.Object{"title": ir.String("Go tips")}},
	}

	assert.True(t, matchItem(item, map[string]any{"name": "Ada"}))
	assert.True(t, matchItem(item, map[string]any{}))
	assert.True(t, matchItem(item, map[string]any{
		"posts": []any{map[string]any{"title": "Go tips"}},
	}))
	assert.False(t, matchItem(item, map[string]any{"name": "Bob"}))
	assert.False(t, matchItem(item, map[string]any{"email": "ada@example.com"}))
	assert.False(t, matchItem(item, map[string]any{"posts": []any{}}))
}

func TestCheckExpect(t *testing.T) {
	ungrouped := ir.Object{
		"items": ir.Array{
			ir.Object{"id": ir.Int(1), "name": ir.String("Ada")},
			ir.Object{"id": ir.Int(3), "name": ir.String("Cy")},
		},
		"pagination": ir.Object{"total": ir.Int(2)},
	}
	grouped := ir.Object{
		"groups": ir.Array{
			ir.Object{
				"key":   ir.String("active"),
				"items": ir.Array{ir.Object{"id": ir.Int(1)}},
			},
		},
		"truncated": ir.Bool(false),
	}

	tests := []struct {
		name   string
		expect *ExpectClause
		out    QueryOutput
		errs   []string
	}{
		{
			name:   "no expectation, success",
			expect: nil,
			out:    QueryOutput{Response: ungrouped},
		},
		{
			name:   "no expectation, error",
			expect: nil,
			out:    QueryOutput{Error: "UNKNOWN_FIELD"},
			errs:   []string{"expect.error"},
		},
		{
			name:   "expected error matches",
			expect: &ExpectClause{Error: "TYPE_MISMATCH", IDs: []any{9}},
			out:    QueryOutput{Error: "TYPE_MISMATCH"},
		},
		{
			name:   "expected error missing",
			expect: &ExpectClause{Error: "TYPE_MISMATCH"},
			out:    QueryOutput{Response: ungrouped},
			errs:   []string{"Actual: (none)"},
		},
		{
			name: "ungrouped match",
			expect: &ExpectClause{
				IDs:   []any{1, 3},
				Count: intPtr(2),
				Items: []map[string]any{{"name": "Ada"}, {"name": "Cy"}},
				Total: intPtr(2),
			},
			out: QueryOutput{Response: ungrouped},
		},
		{
			name: "ungrouped mismatches",
			expect: &ExpectClause{
				IDs:   []any{3, 1},
				Count: intPtr(1),
				Items: []map[string]any{{"name": "Cy"}, {"name": "Cy"}},
				Total: intPtr(5),
			},
			out: QueryOutput{Response: ungrouped},
			errs: []string{
				"expect.ids",
				"expect.count",
				"expect.items[0]",
				"expect.total",
			},
		},
		{
			name:   "item count mismatch",
			expect: &ExpectClause{Items: []map[string]any{{"name": "Ada"}}},
			out:    QueryOutput{Response: ungrouped},
			errs:   []string{"1 items"},
		},
		{
			name: "grouped match",
			expect: &ExpectClause{
				Groups:    []GroupExpect{{Key: "active", IDs: []any{1}, Count: intPtr(1)}},
				Truncated: boolPtr(false),
			},
			out: QueryOutput{Response: grouped},
		},
		{
			name: "grouped mismatches",
			expect: &ExpectClause{
				Groups:    []GroupExpect{{Key: "pending"}},
				Truncated: boolPtr(true),
			},
			out:  QueryOutput{Response: grouped},
			errs: []string{"expect.truncated", "expect.groups[0].key"},
		},
		{
			name:   "group count mismatch",
			expect: &ExpectClause{Groups: []GroupExpect{{Key: "a"}, {Key: "b"}}},
			out:    QueryOutput{Response: grouped},
			errs:   []string{"2 groups"},
		},
		{
			name:   "ids on grouped response",
			expect: &ExpectClause{IDs: []any{1}},
			out:    QueryOutput{Response: grouped},
			errs:   []string{"expect.items"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkExpect(QueryStep{Name: "q", Expect: tt.expect}, tt.out)
			assert.Len(t, got, len(tt.errs), "%v", got)
			for i, want := range tt.errs {
				if i < len(got) {
					assert.Contains(t, got[i], want)
				}
			}
		})
	}
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "active=true AND name=Ada", formatWhereClause(map[string]any{
		"name":   "Ada",
		"active": true,
	}))
}

func TestAssertionError(t *testing.T) {
	err := &AssertionError{
		Type:     AssertPlanJoins,
		Query:    "adults",
		Expected: "joins [posts]",
		Actual:   "joins []",
	}
	assert.Equal(t,
		"Assertion failed: plan_joins (query adults)\n  Expected: joins [posts]\n  Actual: joins []\n",
		err.Error())

	err.Query = ""
	assert.Contains(t, err.Error(), "Assertion failed: plan_joins\n")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions([]Assertion{{Type: "magic"}}, &AssertionContext{})
	assert.Equal(t, []string{`assertion[0]: unknown assertion type "magic"`}, errs)
}

func TestEvaluateAssertions_RowCountWithoutStore(t *testing.T) {
	errs := EvaluateAssertions([]Assertion{{Type: AssertRowCount, Table: "users"}}, &AssertionContext{})
	assert.Equal(t, []string{"assertion[0]: row_count requires database context"}, errs)
}
