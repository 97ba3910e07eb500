package queryir

import (
	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/ir"
)

// Node represents a boolean expression in the plan's predicate tree.
//
// This is a sealed interface - only Leaf, And and Or implement it.
// A nil Node means "always true" (no filtering).
type Node interface {
	predicateNode() // Marker method - seals interface to this package
}

// FieldRef is a field path resolved through the catalog.
//
// Example: the path "posts.comments.body" from entity users resolves to
//
//	FieldRef{
//	  Path:   "posts.comments.body",
//	  Alias:  "posts__comments", // join alias of the owning table
//	  Name:   "body",
//	  Column: "body",
//	  Type:   catalog.TypeString,
//	}
//
// Root fields use the root table as Alias.
type FieldRef struct {
	Path          string
	Alias         string
	Name          string
	Column        string
	Type          catalog.FieldType
	TimezoneAware bool
}

// Prefix returns the relationship path owning the field ("" for root fields).
func (f FieldRef) Prefix() string {
	for i := len(f.Path) - 1; i >= 0; i-- {
		if f.Path[i] == '.' {
			return f.Path[:i]
		}
	}
	return ""
}

// Leaf is a single field/operator/operand condition.
//
// Semantics depend on Op.Arity():
//   - ArityScalar: Operand is a single non-list value
//   - ArityList: Operand is a non-empty ir.Array
//   - ArityNone: Operand is ir.Null
type Leaf struct {
	Field   FieldRef
	Op      Operator
	Operand ir.Value
}

func (Leaf) predicateNode() {}

// And is a conjunction. Children keep the order of the input document.
// An empty And is always true.
type And struct {
	Nodes []Node
}

func (And) predicateNode() {}

// Or is a disjunction. Children keep the order of the input document.
// An empty Or is always false.
type Or struct {
	Nodes []Node
}

func (Or) predicateNode() {}

// JoinKind selects inner or left outer joins for a whole plan.
type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
)

// JoinSpec is one relationship traversal.
//
// The join condition is SourceAlias.LocalKey = Alias.ForeignKey.
// Path is the full relationship prefix ("posts.comments") and is unique
// within a plan.
type JoinSpec struct {
	Path         string
	Source       string
	SourceAlias  string
	Relationship string
	Target       string
	Table        string
	Alias        string
	Kind         JoinKind
	Cardinality  catalog.Cardinality
	LocalKey     string
	ForeignKey   string
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortKey orders results by one field.
//
// When CustomOrder is set the key sorts by rank: CustomOrder[i] has rank i,
// every other value has rank len(CustomOrder). Ties between "other" values
// are broken only by later sort keys.
type SortKey struct {
	Field       FieldRef
	Direction   Direction
	CustomOrder []ir.Value
}

// Granularity is a time-bucket resolution for date grouping.
type Granularity string

const (
	GranularityNone   Granularity = ""
	GranularityYear   Granularity = "year"
	GranularityMonth  Granularity = "month"
	GranularityDay    Granularity = "day"
	GranularityHour   Granularity = "hour"
	GranularityMinute Granularity = "minute"
)

// ParseGranularity validates a granularity name.
func ParseGranularity(name string) (Granularity, bool) {
	switch g := Granularity(name); g {
	case GranularityYear, GranularityMonth, GranularityDay, GranularityHour, GranularityMinute:
		return g, true
	default:
		return GranularityNone, false
	}
}

// GroupKey partitions results.
//
// With Granularity set, the key is the field's instant shifted into the
// group timezone and truncated (see Bucket). OffsetMinutes and Zone are
// mutually exclusive; with neither set the bucket is computed in UTC.
type GroupKey struct {
	Field         FieldRef
	Granularity   Granularity
	OffsetMinutes *int
	Zone          string
}

// IsTimeBucket reports whether the key truncates a temporal field.
func (g GroupKey) IsTimeBucket() bool {
	return g.Granularity != GranularityNone
}

// Window is the pagination window. For grouped plans Limit applies per group.
type Window struct {
	Limit  int
	Offset int
}

// Plan is the immutable output of the compiler.
type Plan struct {
	// ID is a deterministic fingerprint of the compiled document.
	ID string

	Entity     string
	Table      string
	PrimaryKey string

	JoinKind   JoinKind
	Joins      []JoinSpec
	Predicate  Node
	Sort       []SortKey
	Projection []FieldRef
	Group      *GroupKey
	Window     Window

	// Keys holds the primary key of the root and of every relationship
	// that contributes to the projection, in path order. Rows are folded
	// into records on these fields; a key absent from Projection is
	// fetched but not returned.
	Keys []FieldRef

	// MaxTotal caps the sum of items across all groups of a grouped plan.
	MaxTotal int

	IncludePagination bool
}

// Columns returns the fields a row query fetches: the projection followed
// by every key the projection does not already carry.
func (p *Plan) Columns() []FieldRef {
	cols := make([]FieldRef, 0, len(p.Projection)+len(p.Keys))
	seen := make(map[string]bool, len(p.Projection))
	for _, f := range p.Projection {
		seen[f.Path] = true
		cols = append(cols, f)
	}
	for _, k := range p.Keys {
		if !seen[k.Path] {
			cols = append(cols, k)
		}
	}
	return cols
}

// Join returns the join registered for a relationship path.
func (p *Plan) Join(path string) (JoinSpec, bool) {
	for _, j := range p.Joins {
		if j.Path == path {
			return j, true
		}
	}
	return JoinSpec{}, false
}

// Row is one result record keyed by projection path.
type Row map[string]any

// GroupCount is the number of distinct root records in one group.
type GroupCount struct {
	Key   any
	Total int
}
