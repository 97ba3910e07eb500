package compiler

import (
	"fmt"

	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
)

const (
	keyAnd = "and"
	keyOr  = "or"
)

// compileFilter compiles a filter document into a predicate tree.
//
// An absent or empty filter compiles to nil (always true). Sibling keys of
// one object, and the operators of one field, are combined with an implicit
// AND in sorted key order; "and"/"or" arrays keep their element order.
func (s *session) compileFilter(v ir.Value) (queryir.Node, error) {
	if v == nil {
		return nil, nil
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, malformed(keyFilter, "filter must be an object, got %s", kindOf(v))
	}
	if len(obj) == 0 {
		return nil, nil
	}
	return s.compileObject(obj, keyFilter)
}

func (s *session) compileObject(obj ir.Object, where string) (queryir.Node, error) {
	if len(obj) == 0 {
		return nil, malformed(where, "empty condition object")
	}

	nodes := make([]queryir.Node, 0, len(obj))
	for _, key := range obj.SortedKeys() {
		var (
			node queryir.Node
			err  error
		)
		switch key {
		case keyAnd, keyOr:
			node, err = s.compileBoolean(key, obj[key], where+"."+key)
		default:
			node, err = s.compileField(key, obj[key])
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return queryir.And{Nodes: nodes}, nil
}

func (s *session) compileBoolean(key string, v ir.Value, where string) (queryir.Node, error) {
	arr, ok := v.(ir.Array)
	if !ok {
		return nil, malformed(where, "%q must be an array, got %s", key, kindOf(v))
	}

	children := make([]queryir.Node, 0, len(arr))
	for i, elem := range arr {
		child, ok := elem.(ir.Object)
		if !ok {
			return nil, malformed(fmt.Sprintf("%s[%d]", where, i), "condition must be an object, got %s", kindOf(elem))
		}
		node, err := s.compileObject(child, fmt.Sprintf("%s[%d]", where, i))
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}

	if key == keyAnd {
		return queryir.And{Nodes: children}, nil
	}
	return queryir.Or{Nodes: children}, nil
}

// compileField compiles {"path": literal} (eq shorthand) or
// {"path": {"op": operand, ...}}.
func (s *session) compileField(path string, v ir.Value) (queryir.Node, error) {
	field, err := s.resolver.Resolve(path)
	if err != nil {
		return nil, err
	}

	ops, ok := v.(ir.Object)
	if !ok {
		return s.predicates.Compile(string(queryir.OpEq), field, v)
	}
	if len(ops) == 0 {
		return nil, malformed(path, "no operators given for field")
	}

	nodes := make([]queryir.Node, 0, len(ops))
	for _, name := range ops.SortedKeys() {
		node, err := s.predicates.Compile(name, field, ops[name])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return queryir.And{Nodes: nodes}, nil
}
