package queryir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/querymate/internal/ir"
)

// ValidationResult contains the structural analysis of a plan.
//
// Backends call Validate before rendering so that a plan assembled by hand
// (or by a custom operator) cannot reach the data store with dangling
// aliases or malformed operands.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems lists every structural defect found, in traversal order.
	Problems []string
}

// Err returns nil for a valid plan and an error joining all problems
// otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return errors.New("invalid plan: " + strings.Join(r.Problems, "; "))
}

// Validate checks a plan's internal consistency.
//
// Rules:
//  1. Every field reference names the root table or a declared join alias
//  2. Join paths are unique and every join's source alias is declared first
//  3. Leaf operators are built-ins and operands match the operator's arity
//  4. Window limit is positive and offset is non-negative
//  5. A grouped plan carries a positive MaxTotal; time buckets use either an
//     offset or a zone, never both
//
// Validate is a pure function with no side effects.
func Validate(plan *Plan) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validatePlan(plan)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
	aliases  map[string]bool
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validatePlan(p *Plan) {
	if p == nil {
		v.addProblem("nil plan")
		return
	}
	if p.Table == "" {
		v.addProblem("plan has no root table")
	}
	if p.PrimaryKey == "" {
		v.addProblem("plan has no primary key")
	}

	v.aliases = map[string]bool{p.Table: true}
	paths := map[string]bool{}
	for _, j := range p.Joins {
		if paths[j.Path] {
			v.addProblem("duplicate join for path %q", j.Path)
		}
		paths[j.Path] = true
		if !v.aliases[j.SourceAlias] {
			v.addProblem("join %q references undeclared source alias %q", j.Path, j.SourceAlias)
		}
		if v.aliases[j.Alias] {
			v.addProblem("join %q reuses alias %q", j.Path, j.Alias)
		}
		if j.Kind != JoinInner && j.Kind != JoinLeft {
			v.addProblem("join %q has invalid kind %q", j.Path, j.Kind)
		}
		v.aliases[j.Alias] = true
	}

	v.validateNode(p.Predicate)

	for i, s := range p.Sort {
		v.validateField(fmt.Sprintf("sort[%d]", i), s.Field)
		if s.Direction != Asc && s.Direction != Desc {
			v.addProblem("sort[%d] has invalid direction %q", i, s.Direction)
		}
	}
	for _, f := range p.Projection {
		v.validateField("projection", f)
	}
	for _, f := range p.Keys {
		v.validateField("keys", f)
	}

	if p.Window.Limit < 1 {
		v.addProblem("window limit %d must be positive", p.Window.Limit)
	}
	if p.Window.Offset < 0 {
		v.addProblem("window offset %d must be non-negative", p.Window.Offset)
	}

	if p.Group != nil {
		v.validateField("group", p.Group.Field)
		if p.MaxTotal < 1 {
			v.addProblem("grouped plan needs a positive max total, got %d", p.MaxTotal)
		}
		if p.Group.Zone != "" && p.Group.OffsetMinutes != nil {
			v.addProblem("group key sets both an offset and a zone")
		}
		if p.Group.IsTimeBucket() && !p.Group.Field.Type.IsTemporal() {
			v.addProblem("group granularity %q on non-temporal field %q", p.Group.Granularity, p.Group.Field.Path)
		}
	}
}

func (v *validator) validateField(where string, f FieldRef) {
	if !v.aliases[f.Alias] {
		v.addProblem("%s field %q references undeclared alias %q", where, f.Path, f.Alias)
	}
	if f.Column == "" {
		v.addProblem("%s field %q has no column", where, f.Path)
	}
}

func (v *validator) validateNode(n Node) {
	if n == nil {
		return // nil predicates are valid (no filter)
	}

	switch node := n.(type) {
	case Leaf:
		v.validateLeaf(node)
	case And:
		for _, child := range node.Nodes {
			v.validateNode(child)
		}
	case Or:
		for _, child := range node.Nodes {
			v.validateNode(child)
		}
	default:
		v.addProblem("unknown predicate node %T", n)
	}
}

func (v *validator) validateLeaf(l Leaf) {
	v.validateField("filter", l.Field)

	if _, ok := operators[l.Op]; !ok {
		v.addProblem("filter field %q uses unknown operator %q", l.Field.Path, l.Op)
		return
	}

	switch l.Op.Arity() {
	case ArityList:
		arr, ok := l.Operand.(ir.Array)
		if !ok {
			v.addProblem("operator %q on %q needs a list operand, got %T", l.Op, l.Field.Path, l.Operand)
		} else if len(arr) == 0 {
			v.addProblem("operator %q on %q has an empty list", l.Op, l.Field.Path)
		}
	case ArityScalar:
		switch l.Operand.(type) {
		case ir.Array, ir.Object:
			v.addProblem("operator %q on %q needs a scalar operand, got %T", l.Op, l.Field.Path, l.Operand)
		case nil:
			v.addProblem("operator %q on %q has no operand", l.Op, l.Field.Path)
		}
	case ArityNone:
		if !ir.IsNull(l.Operand) {
			v.addProblem("operator %q on %q takes no operand", l.Op, l.Field.Path)
		}
	}
}
