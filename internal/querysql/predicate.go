package querysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
)

// likeEscape is appended to every LIKE built from a literal operand.
const likeEscape = ` ESCAPE '\'`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// affix builds a LIKE pattern around a literal.
type affix func(s string) string

var (
	contains   affix = func(s string) string { return "%" + likeEscaper.Replace(s) + "%" }
	startsWith affix = func(s string) string { return likeEscaper.Replace(s) + "%" }
	endsWith   affix = func(s string) string { return "%" + likeEscaper.Replace(s) }
)

// likeOp describes one pattern operator after the any/all/not expansion.
type likeOp struct {
	pattern affix // nil: operand is a raw LIKE pattern
	fold    bool  // case-insensitive
	negate  bool
	combine combiner
}

type combiner int

const (
	single combiner = iota
	anyOf
	allOf
)

var likeOps = map[queryir.Operator]likeOp{
	queryir.OpCont: {pattern: contains},

	queryir.OpStart:       {pattern: startsWith},
	queryir.OpNotStart:    {pattern: startsWith, negate: true},
	queryir.OpStartAny:    {pattern: startsWith, combine: anyOf},
	queryir.OpStartAll:    {pattern: startsWith, combine: allOf},
	queryir.OpNotStartAny: {pattern: startsWith, negate: true, combine: allOf},
	queryir.OpNotStartAll: {pattern: startsWith, negate: true, combine: anyOf},

	queryir.OpEnd:       {pattern: endsWith},
	queryir.OpNotEnd:    {pattern: endsWith, negate: true},
	queryir.OpEndAny:    {pattern: endsWith, combine: anyOf},
	queryir.OpEndAll:    {pattern: endsWith, combine: allOf},
	queryir.OpNotEndAny: {pattern: endsWith, negate: true, combine: allOf},
	queryir.OpNotEndAll: {pattern: endsWith, negate: true, combine: anyOf},

	queryir.OpICont:       {pattern: contains, fold: true},
	queryir.OpNotICont:    {pattern: contains, fold: true, negate: true},
	queryir.OpIContAny:    {pattern: contains, fold: true, combine: anyOf},
	queryir.OpIContAll:    {pattern: contains, fold: true, combine: allOf},
	queryir.OpNotIContAny: {pattern: contains, fold: true, negate: true, combine: allOf},
	queryir.OpNotIContAll: {pattern: contains, fold: true, negate: true, combine: anyOf},

	queryir.OpMatches:     {},
	queryir.OpNotMatch:    {negate: true},
	queryir.OpMatchesAny:  {combine: anyOf},
	queryir.OpMatchesAll:  {combine: allOf},
	queryir.OpNotMatchAny: {negate: true, combine: allOf},
	queryir.OpNotMatchAll: {negate: true, combine: anyOf},
}

// comparison builds one comparison for a column and a bound argument.
type comparison func(col string, arg any) sq.Sqlizer

var (
	cmpEq  comparison = func(col string, arg any) sq.Sqlizer { return sq.Eq{col: arg} }
	cmpNe  comparison = func(col string, arg any) sq.Sqlizer { return sq.NotEq{col: arg} }
	cmpGt  comparison = func(col string, arg any) sq.Sqlizer { return sq.Gt{col: arg} }
	cmpLt  comparison = func(col string, arg any) sq.Sqlizer { return sq.Lt{col: arg} }
	cmpGte comparison = func(col string, arg any) sq.Sqlizer { return sq.GtOrEq{col: arg} }
	cmpLte comparison = func(col string, arg any) sq.Sqlizer { return sq.LtOrEq{col: arg} }
)

var comparisons = map[queryir.Operator]struct {
	cmp     comparison
	combine combiner
}{
	queryir.OpEq:       {cmpEq, single},
	queryir.OpNe:       {cmpNe, single},
	queryir.OpGt:       {cmpGt, single},
	queryir.OpLt:       {cmpLt, single},
	queryir.OpGte:      {cmpGte, single},
	queryir.OpLte:      {cmpLte, single},
	queryir.OpGtAny:    {cmpGt, anyOf},
	queryir.OpLtAny:    {cmpLt, anyOf},
	queryir.OpGteqAny:  {cmpGte, anyOf},
	queryir.OpLteqAny:  {cmpLte, anyOf},
	queryir.OpGtAll:    {cmpGt, allOf},
	queryir.OpLtAll:    {cmpLt, allOf},
	queryir.OpGteqAll:  {cmpGte, allOf},
	queryir.OpLteqAll:  {cmpLte, allOf},
	queryir.OpNotEqAll: {cmpNe, allOf},
}

// where converts a predicate tree into a squirrel condition.
// CRITICAL: operands are always bound, never interpolated.
func (d Dialect) where(n queryir.Node) (sq.Sqlizer, error) {
	switch node := n.(type) {
	case queryir.And:
		parts, err := d.children(node.Nodes)
		if err != nil {
			return nil, err
		}
		return sq.And(parts), nil
	case queryir.Or:
		parts, err := d.children(node.Nodes)
		if err != nil {
			return nil, err
		}
		return sq.Or(parts), nil
	case queryir.Leaf:
		return d.leaf(node)
	default:
		return nil, fmt.Errorf("unsupported predicate node %T", n)
	}
}

func (d Dialect) children(nodes []queryir.Node) ([]sq.Sqlizer, error) {
	out := make([]sq.Sqlizer, 0, len(nodes))
	for _, n := range nodes {
		s, err := d.where(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d Dialect) leaf(l queryir.Leaf) (sq.Sqlizer, error) {
	col := column(l.Field)

	switch l.Op {
	case queryir.OpIsNull:
		return sq.Eq{col: nil}, nil
	case queryir.OpIsNotNull:
		return sq.NotEq{col: nil}, nil
	case queryir.OpPresent:
		if l.Field.Type == catalog.TypeString {
			return sq.And{sq.NotEq{col: nil}, sq.NotEq{col: ""}}, nil
		}
		return sq.NotEq{col: nil}, nil
	case queryir.OpBlank:
		if l.Field.Type == catalog.TypeString {
			return sq.Or{sq.Eq{col: nil}, sq.Eq{col: ""}}, nil
		}
		return sq.Eq{col: nil}, nil
	case queryir.OpTrue:
		return sq.Eq{col: true}, nil
	case queryir.OpFalse:
		return sq.Eq{col: false}, nil
	case queryir.OpIn, queryir.OpNin:
		arr, ok := l.Operand.(ir.Array)
		if !ok {
			return nil, fmt.Errorf("%s on %s: operand must be a list", l.Op, l.Field.Path)
		}
		args, err := d.params(arr)
		if err != nil {
			return nil, err
		}
		if l.Op == queryir.OpIn {
			return sq.Eq{col: args}, nil
		}
		return sq.NotEq{col: args}, nil
	}

	if c, ok := comparisons[l.Op]; ok {
		return d.expand(l, c.combine, func(arg any) sq.Sqlizer { return c.cmp(col, arg) })
	}

	if like, ok := likeOps[l.Op]; ok {
		return d.expand(l, like.combine, func(arg any) sq.Sqlizer { return d.like(col, like, arg) })
	}

	return nil, fmt.Errorf("operator %q has no SQL rendering", l.Op)
}

// expand applies build to a scalar operand, or to each element of a list
// operand joined by OR (anyOf) or AND (allOf).
func (d Dialect) expand(l queryir.Leaf, combine combiner, build func(arg any) sq.Sqlizer) (sq.Sqlizer, error) {
	if combine == single {
		arg, err := d.param(l.Operand)
		if err != nil {
			return nil, err
		}
		return build(arg), nil
	}

	arr, ok := l.Operand.(ir.Array)
	if !ok {
		return nil, fmt.Errorf("%s on %s: operand must be a list", l.Op, l.Field.Path)
	}
	args, err := d.params(arr)
	if err != nil {
		return nil, err
	}
	parts := make([]sq.Sqlizer, len(args))
	for i, arg := range args {
		parts[i] = build(arg)
	}
	if combine == anyOf {
		return sq.Or(parts), nil
	}
	return sq.And(parts), nil
}

func (d Dialect) like(col string, op likeOp, arg any) sq.Sqlizer {
	s, _ := arg.(string)

	keyword := "LIKE"
	if op.negate {
		keyword = "NOT LIKE"
	}

	if op.pattern == nil {
		return sq.Expr(fmt.Sprintf("%s %s ?", col, keyword), s)
	}

	pattern := op.pattern(s)
	if !op.fold {
		return sq.Expr(fmt.Sprintf("%s %s ?%s", col, keyword, likeEscape), pattern)
	}
	if d == Postgres {
		keyword = strings.Replace(keyword, "LIKE", "ILIKE", 1)
		return sq.Expr(fmt.Sprintf("%s %s ?%s", col, keyword, likeEscape), pattern)
	}
	return sq.Expr(fmt.Sprintf("LOWER(%s) %s LOWER(?)%s", col, keyword, likeEscape), pattern)
}
