package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
)

func field(path string, t catalog.FieldType) queryir.FieldRef {
	return queryir.FieldRef{Path: path, Alias: "t", Name: path, Column: path, Type: t}
}

func TestPredicateEveryBuiltinOperatorCompiles(t *testing.T) {
	e := NewPredicateEngine(nil, false)

	for _, op := range queryir.Operators() {
		var f queryir.FieldRef
		switch op.Family() {
		case queryir.FamilyBoolean:
			f = field("active", catalog.TypeBoolean)
		default:
			f = field("name", catalog.TypeString)
		}

		var operand ir.Value
		switch op.Arity() {
		case queryir.ArityScalar:
			operand = ir.String("x")
		case queryir.ArityList:
			operand = ir.Array{ir.String("x"), ir.String("y")}
		default:
			operand = ir.Bool(true)
		}

		t.Run(string(op), func(t *testing.T) {
			node, err := e.Compile(string(op), f, operand)
			require.NoError(t, err)
			leaf, ok := node.(queryir.Leaf)
			require.True(t, ok)
			assert.Equal(t, op, leaf.Op)
		})
	}
}

func TestPredicateAliases(t *testing.T) {
	e := NewPredicateEngine(nil, false)
	f := field("name", catalog.TypeString)

	node, err := e.Compile("starts_with", f, ir.String("A"))
	require.NoError(t, err)
	assert.Equal(t, queryir.OpStart, node.(queryir.Leaf).Op)

	node, err = e.Compile("ends_with", f, ir.String("z"))
	require.NoError(t, err)
	assert.Equal(t, queryir.OpEnd, node.(queryir.Leaf).Op)
}

func TestPredicateTypeChecks(t *testing.T) {
	e := NewPredicateEngine(nil, false)

	tests := []struct {
		name    string
		op      string
		field   queryir.FieldRef
		operand ir.Value
		code    ErrorCode
	}{
		{"cont on boolean", "cont", field("active", catalog.TypeBoolean), ir.String("x"), ErrCodeTypeMismatch},
		{"start on number", "start", field("age", catalog.TypeNumber), ir.String("1"), ErrCodeTypeMismatch},
		{"true on string", "true", field("name", catalog.TypeString), ir.Null{}, ErrCodeTypeMismatch},
		{"in with scalar", "in", field("age", catalog.TypeNumber), ir.Int(1), ErrCodeTypeMismatch},
		{"eq with list", "eq", field("age", catalog.TypeNumber), ir.Array{ir.Int(1)}, ErrCodeTypeMismatch},
		{"gt with null", "gt", field("age", catalog.TypeNumber), ir.Null{}, ErrCodeTypeMismatch},
		{"number from word", "eq", field("age", catalog.TypeNumber), ir.String("ten"), ErrCodeTypeMismatch},
		{"boolean from 2", "eq", field("active", catalog.TypeBoolean), ir.Int(2), ErrCodeTypeMismatch},
		{"string from bool", "eq", field("name", catalog.TypeString), ir.Bool(true), ErrCodeTypeMismatch},
		{"empty gt_any", "gt_any", field("age", catalog.TypeNumber), ir.Array{}, ErrCodeTypeMismatch},
		{"is_null with number", "is_null", field("age", catalog.TypeNumber), ir.Int(3), ErrCodeTypeMismatch},
		{"unknown", "between", field("age", catalog.TypeNumber), ir.Array{ir.Int(1), ir.Int(2)}, ErrCodeUnknownOperator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Compile(tt.op, tt.field, tt.operand)
			requireCode(t, err, tt.code)

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.op, ce.Operator)
			assert.Equal(t, tt.field.Path, ce.Path)
		})
	}
}

func TestPredicateCoercion(t *testing.T) {
	e := NewPredicateEngine(nil, false)

	tests := []struct {
		name    string
		field   queryir.FieldRef
		operand ir.Value
		want    ir.Value
	}{
		{"int string", field("age", catalog.TypeNumber), ir.String("42"), ir.Int(42)},
		{"float string", field("age", catalog.TypeNumber), ir.String("4.5"), ir.Float(4.5)},
		{"bool string", field("active", catalog.TypeBoolean), ir.String("false"), ir.Bool(false)},
		{"bool one", field("active", catalog.TypeBoolean), ir.Int(1), ir.Bool(true)},
		{"string from int", field("name", catalog.TypeString), ir.Int(7), ir.String("7")},
		{"string from float", field("name", catalog.TypeString), ir.Float(1.5), ir.String("1.5")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := e.Compile("eq", tt.field, tt.operand)
			require.NoError(t, err)
			assert.Equal(t, tt.want, node.(queryir.Leaf).Operand)
		})
	}
}

func TestPredicateNullOnlyForEquality(t *testing.T) {
	e := NewPredicateEngine(nil, false)
	f := field("email", catalog.TypeString)

	for _, op := range []string{"eq", "ne"} {
		node, err := e.Compile(op, f, ir.Null{})
		require.NoError(t, err)
		assert.Equal(t, ir.Null{}, node.(queryir.Leaf).Operand)
	}

	_, err := e.Compile("in", f, ir.Array{ir.Null{}})
	requireCode(t, err, ErrCodeTypeMismatch)
}

func TestPredicateNoOperandInversion(t *testing.T) {
	e := NewPredicateEngine(nil, false)
	f := field("email", catalog.TypeString)

	tests := []struct {
		op      string
		operand ir.Value
		want    queryir.Operator
	}{
		{"is_null", ir.Bool(true), queryir.OpIsNull},
		{"is_null", ir.Bool(false), queryir.OpIsNotNull},
		{"is_null", nil, queryir.OpIsNull},
		{"is_not_null", ir.String("false"), queryir.OpIsNull},
		{"present", ir.Bool(false), queryir.OpBlank},
		{"blank", ir.String("0"), queryir.OpPresent},
		{"blank", ir.String("true"), queryir.OpBlank},
	}

	for _, tt := range tests {
		node, err := e.Compile(tt.op, f, tt.operand)
		require.NoError(t, err)
		leaf := node.(queryir.Leaf)
		assert.Equal(t, tt.want, leaf.Op, "%s %v", tt.op, tt.operand)
		assert.Equal(t, ir.Null{}, leaf.Operand)
	}
}

func TestPredicateBooleanOperatorsIgnoreOperand(t *testing.T) {
	e := NewPredicateEngine(nil, false)
	f := field("active", catalog.TypeBoolean)

	node, err := e.Compile("false", f, ir.Int(99))
	require.NoError(t, err)
	assert.Equal(t, queryir.Leaf{Field: f, Op: queryir.OpFalse, Operand: ir.Null{}}, node)
}

func TestPredicateEmptyLists(t *testing.T) {
	e := NewPredicateEngine(nil, false)
	f := field("age", catalog.TypeNumber)

	node, err := e.Compile("in", f, ir.Array{})
	require.NoError(t, err)
	assert.Equal(t, queryir.Or{}, node)

	node, err = e.Compile("nin", f, ir.Array{})
	require.NoError(t, err)
	assert.Equal(t, queryir.And{}, node)
}

func TestPredicateListCoercion(t *testing.T) {
	e := NewPredicateEngine(nil, false)

	node, err := e.Compile("in", field("age", catalog.TypeNumber), ir.Array{ir.Int(1), ir.String("2")})
	require.NoError(t, err)
	assert.Equal(t, ir.Array{ir.Int(1), ir.Int(2)}, node.(queryir.Leaf).Operand)
}

func TestPredicateTemporalNormalization(t *testing.T) {
	e := NewPredicateEngine(nil, false)

	aware := field("created_at", catalog.TypeDateTime)
	aware.TimezoneAware = true
	naive := field("updated_at", catalog.TypeDateTime)
	date := field("birthday", catalog.TypeDate)

	tests := []struct {
		name    string
		field   queryir.FieldRef
		operand string
		want    ir.Time
	}{
		{
			"aware with offset",
			aware, "2024-03-01T10:00:00-03:00",
			ir.Time{T: time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), Kind: ir.TimeZoned},
		},
		{
			"aware without offset is UTC",
			aware, "2024-03-01T10:00:00",
			ir.Time{T: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), Kind: ir.TimeZoned},
		},
		{
			"naive with offset converts to UTC",
			naive, "2024-03-01T10:00:00+02:00",
			ir.Time{T: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), Kind: ir.TimeNaive},
		},
		{
			"naive bare date is midnight",
			naive, "2024-03-01",
			ir.Time{T: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Kind: ir.TimeNaive},
		},
		{
			"date keeps calendar date",
			date, "2024-03-01T23:30:00-05:00",
			ir.Time{T: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Kind: ir.TimeDate},
		},
		{
			"space separator",
			naive, "2024-03-01 07:08:09",
			ir.Time{T: time.Date(2024, 3, 1, 7, 8, 9, 0, time.UTC), Kind: ir.TimeNaive},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := e.Compile("gte", tt.field, ir.String(tt.operand))
			require.NoError(t, err)
			got, ok := node.(queryir.Leaf).Operand.(ir.Time)
			require.True(t, ok)
			assert.True(t, tt.want.T.Equal(got.T), "want %v, got %v", tt.want.T, got.T)
			assert.Equal(t, tt.want.Kind, got.Kind)
		})
	}
}

func TestPredicateUnparseableTemporal(t *testing.T) {
	f := field("updated_at", catalog.TypeDateTime)

	node, err := NewPredicateEngine(nil, false).Compile("eq", f, ir.String("last tuesday"))
	require.NoError(t, err)
	assert.Equal(t, ir.String("last tuesday"), node.(queryir.Leaf).Operand)

	_, err = NewPredicateEngine(nil, true).Compile("eq", f, ir.String("last tuesday"))
	requireCode(t, err, ErrCodeMalformed)

	_, err = NewPredicateEngine(nil, true).Compile("eq", f, ir.Int(5))
	requireCode(t, err, ErrCodeMalformed)
}
