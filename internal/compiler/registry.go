package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
)

// BuildFunc expands a custom operator into a predicate tree built from
// built-in leaves. It must be pure.
type BuildFunc func(field queryir.FieldRef, operand ir.Value) (queryir.Node, error)

// CustomOperator describes a registered operator.
type CustomOperator struct {
	// Types lists the field types the operator accepts. Empty means all.
	Types []catalog.FieldType

	// Arity is the operand shape, checked before Build is called.
	Arity queryir.Arity

	// Build produces the predicate.
	Build BuildFunc
}

func (c CustomOperator) accepts(t catalog.FieldType) bool {
	return len(c.Types) == 0 || slices.Contains(c.Types, t)
}

// Registry maps custom operator names to their definitions.
//
// Register every operator before compiling; a Registry is read
// concurrently by compilations and must not change afterwards.
type Registry struct {
	ops map[string]CustomOperator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: map[string]CustomOperator{}}
}

// Register adds a custom operator. Names may not shadow built-in operators
// or aliases, or be registered twice.
func (r *Registry) Register(name string, op CustomOperator) error {
	switch {
	case name == "":
		return fmt.Errorf("register operator: empty name")
	case name == "and" || name == "or":
		return fmt.Errorf("register operator %q: reserved name", name)
	case queryir.IsBuiltin(name):
		return fmt.Errorf("register operator %q: shadows a built-in operator", name)
	case op.Build == nil:
		return fmt.Errorf("register operator %q: nil Build", name)
	}
	if _, dup := r.ops[name]; dup {
		return fmt.Errorf("register operator %q: already registered", name)
	}
	r.ops[name] = op
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, op CustomOperator) {
	if err := r.Register(name, op); err != nil {
		panic(err)
	}
}

// Lookup returns a custom operator.
func (r *Registry) Lookup(name string) (CustomOperator, bool) {
	if r == nil {
		return CustomOperator{}, false
	}
	op, ok := r.ops[name]
	return op, ok
}
