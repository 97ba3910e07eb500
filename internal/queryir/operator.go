package queryir

// Operator is a canonical predicate operator name.
//
// Aliases accepted in specification documents (starts_with, ends_with) are
// collapsed by Canonical before a Leaf is built, so a plan only ever carries
// the names below.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpLt  Operator = "lt"
	OpGte Operator = "gte"
	OpLte Operator = "lte"

	OpGtAny   Operator = "gt_any"
	OpLtAny   Operator = "lt_any"
	OpGteqAny Operator = "gteq_any"
	OpLteqAny Operator = "lteq_any"

	OpGtAll    Operator = "gt_all"
	OpLtAll    Operator = "lt_all"
	OpGteqAll  Operator = "gteq_all"
	OpLteqAll  Operator = "lteq_all"
	OpNotEqAll Operator = "not_eq_all"

	OpIn  Operator = "in"
	OpNin Operator = "nin"

	OpIsNull    Operator = "is_null"
	OpIsNotNull Operator = "is_not_null"
	OpPresent   Operator = "present"
	OpBlank     Operator = "blank"

	OpTrue  Operator = "true"
	OpFalse Operator = "false"

	OpCont Operator = "cont"

	OpStart         Operator = "start"
	OpNotStart      Operator = "not_start"
	OpStartAny      Operator = "start_any"
	OpStartAll      Operator = "start_all"
	OpNotStartAny   Operator = "not_start_any"
	OpNotStartAll   Operator = "not_start_all"
	OpEnd           Operator = "end"
	OpNotEnd        Operator = "not_end"
	OpEndAny        Operator = "end_any"
	OpEndAll        Operator = "end_all"
	OpNotEndAny     Operator = "not_end_any"
	OpNotEndAll     Operator = "not_end_all"
	OpICont         Operator = "i_cont"
	OpNotICont      Operator = "not_i_cont"
	OpIContAny      Operator = "i_cont_any"
	OpIContAll      Operator = "i_cont_all"
	OpNotIContAny   Operator = "not_i_cont_any"
	OpNotIContAll   Operator = "not_i_cont_all"
	OpMatches       Operator = "matches"
	OpNotMatch      Operator = "does_not_match"
	OpMatchesAny    Operator = "matches_any"
	OpMatchesAll    Operator = "matches_all"
	OpNotMatchAny   Operator = "does_not_match_any"
	OpNotMatchAll   Operator = "does_not_match_all"
)

// Arity describes the operand shape an operator expects.
type Arity int

const (
	// ArityScalar takes exactly one non-list operand.
	ArityScalar Arity = iota
	// ArityList takes a non-empty list of operands.
	ArityList
	// ArityNone takes no operand.
	ArityNone
)

func (a Arity) String() string {
	switch a {
	case ArityScalar:
		return "scalar"
	case ArityList:
		return "list"
	case ArityNone:
		return "none"
	default:
		return "unknown"
	}
}

// Family groups operators by the field types they accept.
type Family int

const (
	// FamilyGeneric operators accept every field type.
	FamilyGeneric Family = iota
	// FamilyString operators accept string fields only.
	FamilyString
	// FamilyBoolean operators accept boolean fields only.
	FamilyBoolean
)

type operatorInfo struct {
	arity  Arity
	family Family
}

var operators = map[Operator]operatorInfo{
	OpEq:  {ArityScalar, FamilyGeneric},
	OpNe:  {ArityScalar, FamilyGeneric},
	OpGt:  {ArityScalar, FamilyGeneric},
	OpLt:  {ArityScalar, FamilyGeneric},
	OpGte: {ArityScalar, FamilyGeneric},
	OpLte: {ArityScalar, FamilyGeneric},

	OpGtAny:   {ArityList, FamilyGeneric},
	OpLtAny:   {ArityList, FamilyGeneric},
	OpGteqAny: {ArityList, FamilyGeneric},
	OpLteqAny: {ArityList, FamilyGeneric},

	OpGtAll:    {ArityList, FamilyGeneric},
	OpLtAll:    {ArityList, FamilyGeneric},
	OpGteqAll:  {ArityList, FamilyGeneric},
	OpLteqAll:  {ArityList, FamilyGeneric},
	OpNotEqAll: {ArityList, FamilyGeneric},

	OpIn:  {ArityList, FamilyGeneric},
	OpNin: {ArityList, FamilyGeneric},

	OpIsNull:    {ArityNone, FamilyGeneric},
	OpIsNotNull: {ArityNone, FamilyGeneric},
	OpPresent:   {ArityNone, FamilyGeneric},
	OpBlank:     {ArityNone, FamilyGeneric},

	OpTrue:  {ArityNone, FamilyBoolean},
	OpFalse: {ArityNone, FamilyBoolean},

	OpCont:        {ArityScalar, FamilyString},
	OpStart:       {ArityScalar, FamilyString},
	OpNotStart:    {ArityScalar, FamilyString},
	OpStartAny:    {ArityList, FamilyString},
	OpStartAll:    {ArityList, FamilyString},
	OpNotStartAny: {ArityList, FamilyString},
	OpNotStartAll: {ArityList, FamilyString},
	OpEnd:         {ArityScalar, FamilyString},
	OpNotEnd:      {ArityScalar, FamilyString},
	OpEndAny:      {ArityList, FamilyString},
	OpEndAll:      {ArityList, FamilyString},
	OpNotEndAny:   {ArityList, FamilyString},
	OpNotEndAll:   {ArityList, FamilyString},
	OpICont:       {ArityScalar, FamilyString},
	OpNotICont:    {ArityScalar, FamilyString},
	OpIContAny:    {ArityList, FamilyString},
	OpIContAll:    {ArityList, FamilyString},
	OpNotIContAny: {ArityList, FamilyString},
	OpNotIContAll: {ArityList, FamilyString},
	OpMatches:     {ArityScalar, FamilyString},
	OpNotMatch:    {ArityScalar, FamilyString},
	OpMatchesAny:  {ArityList, FamilyString},
	OpMatchesAll:  {ArityList, FamilyString},
	OpNotMatchAny: {ArityList, FamilyString},
	OpNotMatchAll: {ArityList, FamilyString},
}

var aliases = map[string]Operator{
	"starts_with": OpStart,
	"ends_with":   OpEnd,
}

// Canonical resolves an operator name (including aliases) to a built-in
// operator. The second result is false for unknown names.
func Canonical(name string) (Operator, bool) {
	if op, ok := aliases[name]; ok {
		return op, true
	}
	op := Operator(name)
	_, ok := operators[op]
	return op, ok
}

// IsBuiltin reports whether name is a built-in operator or alias.
func IsBuiltin(name string) bool {
	_, ok := Canonical(name)
	return ok
}

// Arity returns the operand shape of a built-in operator.
func (o Operator) Arity() Arity {
	return operators[o].arity
}

// Family returns the type family of a built-in operator.
func (o Operator) Family() Family {
	return operators[o].family
}

// Operators returns every built-in operator. Order is unspecified.
func Operators() []Operator {
	out := make([]Operator, 0, len(operators))
	for op := range operators {
		out = append(out, op)
	}
	return out
}
