package compiler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
)

// PredicateEngine maps an operator name, a resolved field and an operand to
// a predicate node. It checks the operator against the field's semantic
// type, checks operand arity and coerces operands to the field's type.
type PredicateEngine struct {
	registry       *Registry
	strictTemporal bool
}

// NewPredicateEngine returns an engine. registry may be nil.
func NewPredicateEngine(registry *Registry, strictTemporal bool) *PredicateEngine {
	return &PredicateEngine{registry: registry, strictTemporal: strictTemporal}
}

// inverses maps null/presence operators to their negation, used when the
// operand is false ({"deleted_at": {"is_null": false}}).
var inverses = map[queryir.Operator]queryir.Operator{
	queryir.OpIsNull:    queryir.OpIsNotNull,
	queryir.OpIsNotNull: queryir.OpIsNull,
	queryir.OpPresent:   queryir.OpBlank,
	queryir.OpBlank:     queryir.OpPresent,
}

// Compile builds the predicate for one field/operator/operand triple.
func (e *PredicateEngine) Compile(name string, field queryir.FieldRef, operand ir.Value) (queryir.Node, error) {
	if operand == nil {
		operand = ir.Null{}
	}

	op, builtin := queryir.Canonical(name)
	if !builtin {
		custom, ok := e.registry.Lookup(name)
		if !ok {
			return nil, &Error{Code: ErrCodeUnknownOperator, Path: field.Path, Operator: name, Message: "unknown operator"}
		}
		return e.compileCustom(name, custom, field, operand)
	}

	if !familyAccepts(op.Family(), field.Type) {
		return nil, mismatch(field, name, "operator not valid for %s field", field.Type)
	}

	switch op.Arity() {
	case queryir.ArityNone:
		return e.compileNone(op, name, field, operand)

	case queryir.ArityScalar:
		v, err := e.coerceScalar(field, name, operand, op == queryir.OpEq || op == queryir.OpNe)
		if err != nil {
			return nil, err
		}
		return queryir.Leaf{Field: field, Op: op, Operand: v}, nil

	default:
		arr, ok := operand.(ir.Array)
		if !ok {
			return nil, mismatch(field, name, "operator expects a list, got %s", kindOf(operand))
		}
		if len(arr) == 0 {
			switch op {
			case queryir.OpIn:
				return queryir.Or{}, nil // matches nothing
			case queryir.OpNin:
				return queryir.And{}, nil // matches everything
			default:
				return nil, mismatch(field, name, "operator expects a non-empty list")
			}
		}
		list, err := e.coerceList(field, name, arr)
		if err != nil {
			return nil, err
		}
		return queryir.Leaf{Field: field, Op: op, Operand: list}, nil
	}
}

func (e *PredicateEngine) compileNone(op queryir.Operator, name string, field queryir.FieldRef, operand ir.Value) (queryir.Node, error) {
	if op == queryir.OpTrue || op == queryir.OpFalse {
		// Operand ignored.
		return queryir.Leaf{Field: field, Op: op, Operand: ir.Null{}}, nil
	}

	switch v := operand.(type) {
	case ir.Null:
	case ir.Bool:
		if !v {
			op = inverses[op]
		}
	case ir.String:
		switch strings.ToLower(string(v)) {
		case "true", "1", "":
		case "false", "0":
			op = inverses[op]
		default:
			return nil, mismatch(field, name, "operator takes no operand")
		}
	default:
		return nil, mismatch(field, name, "operator takes no operand")
	}
	return queryir.Leaf{Field: field, Op: op, Operand: ir.Null{}}, nil
}

func (e *PredicateEngine) compileCustom(name string, custom CustomOperator, field queryir.FieldRef, operand ir.Value) (queryir.Node, error) {
	if !custom.accepts(field.Type) {
		return nil, mismatch(field, name, "operator not valid for %s field", field.Type)
	}

	var (
		v   ir.Value
		err error
	)
	switch custom.Arity {
	case queryir.ArityNone:
		v = ir.Null{}
	case queryir.ArityScalar:
		v, err = e.coerceScalar(field, name, operand, false)
	case queryir.ArityList:
		arr, ok := operand.(ir.Array)
		if !ok || len(arr) == 0 {
			return nil, mismatch(field, name, "operator expects a non-empty list")
		}
		v, err = e.coerceList(field, name, arr)
	}
	if err != nil {
		return nil, err
	}

	node, err := custom.Build(field, v)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &Error{Code: ErrCodeMalformed, Path: field.Path, Operator: name, Message: err.Error()}
	}
	return node, nil
}

func (e *PredicateEngine) coerceList(field queryir.FieldRef, name string, arr ir.Array) (ir.Array, error) {
	out := make(ir.Array, len(arr))
	for i, elem := range arr {
		v, err := e.coerceScalar(field, name, elem, false)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// coerceScalar converts one operand to the field's semantic type.
func (e *PredicateEngine) coerceScalar(field queryir.FieldRef, name string, v ir.Value, allowNull bool) (ir.Value, error) {
	switch v.(type) {
	case ir.Array, ir.Object:
		return nil, mismatch(field, name, "operator expects a single value, got %s", kindOf(v))
	case ir.Null:
		if allowNull {
			return v, nil
		}
		return nil, mismatch(field, name, "operand may not be null")
	}

	switch field.Type {
	case catalog.TypeDate, catalog.TypeDateTime:
		return coerceTemporal(v, field, e.strictTemporal, name)

	case catalog.TypeNumber:
		switch n := v.(type) {
		case ir.Int, ir.Float:
			return v, nil
		case ir.String:
			s := strings.TrimSpace(string(n))
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return ir.Int(i), nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return ir.Float(f), nil
			}
		}
		return nil, mismatch(field, name, "expected a number, got %s", kindOf(v))

	case catalog.TypeBoolean:
		switch b := v.(type) {
		case ir.Bool:
			return v, nil
		case ir.String:
			if parsed, err := strconv.ParseBool(string(b)); err == nil {
				return ir.Bool(parsed), nil
			}
		case ir.Int:
			if b == 0 || b == 1 {
				return ir.Bool(b == 1), nil
			}
		}
		return nil, mismatch(field, name, "expected a boolean, got %s", kindOf(v))

	case catalog.TypeString:
		switch s := v.(type) {
		case ir.String:
			return v, nil
		case ir.Int:
			return ir.String(strconv.FormatInt(int64(s), 10)), nil
		case ir.Float:
			return ir.String(strconv.FormatFloat(float64(s), 'f', -1, 64)), nil
		}
		return nil, mismatch(field, name, "expected a string, got %s", kindOf(v))

	default:
		return v, nil
	}
}

func familyAccepts(f queryir.Family, t catalog.FieldType) bool {
	switch f {
	case queryir.FamilyString:
		return t == catalog.TypeString
	case queryir.FamilyBoolean:
		return t == catalog.TypeBoolean
	default:
		return true
	}
}

func mismatch(field queryir.FieldRef, op, format string, args ...any) *Error {
	err := newError(ErrCodeTypeMismatch, field.Path, format, args...)
	err.Operator = op
	return err
}
