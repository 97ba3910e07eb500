// Package compiler turns specification documents into query plans.
//
// Compilation is pure: it reads the catalog and the document, performs no
// I/O and shares no mutable state, so one Compiler may serve any number of
// concurrent calls. Every structural problem is reported as an *Error
// before an executor is involved.
package compiler

import (
	"fmt"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/config"
	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/paginate"
	"github.com/roach88/querymate/internal/queryir"
)

// Compiler compiles documents against a catalog.
type Compiler struct {
	catalog  catalog.Catalog
	cfg      config.Config
	registry *Registry
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRegistry installs custom operators.
func WithRegistry(r *Registry) Option {
	return func(c *Compiler) {
		c.registry = r
	}
}

// New returns a Compiler.
func New(cat catalog.Catalog, cfg config.Config, opts ...Option) *Compiler {
	c := &Compiler{catalog: cat, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the compiler's settings.
func (c *Compiler) Config() config.Config {
	return c.cfg
}

// session holds the state of one compilation.
type session struct {
	cfg        config.Config
	root       *catalog.Entity
	resolver   *Resolver
	predicates *PredicateEngine
}

// CompileJSON parses and compiles a JSON document.
func (c *Compiler) CompileJSON(entity string, data []byte) (*queryir.Plan, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return c.Compile(entity, doc)
}

// Compile builds the plan for one document. A nil document compiles to the
// defaults (no filter, no sort, all direct fields, default window).
func (c *Compiler) Compile(entity string, doc *Document) (*queryir.Plan, error) {
	if doc == nil {
		doc = &Document{raw: ir.Object{}}
	}

	root, ok := c.catalog.Entity(entity)
	if !ok {
		return nil, newError(ErrCodeUnknownEntity, entity, "unknown entity %q", entity)
	}

	kind, err := joinKind(doc.JoinType)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:        c.cfg,
		root:       root,
		resolver:   NewResolver(c.catalog, root, kind),
		predicates: NewPredicateEngine(c.registry, c.cfg.StrictTemporal),
	}

	predicate, err := s.compileFilter(doc.Filter)
	if err != nil {
		return nil, err
	}
	sortKeys, err := s.compileSort(doc.Sort)
	if err != nil {
		return nil, err
	}
	fields, err := s.compileSelect(doc.Select)
	if err != nil {
		return nil, err
	}
	keys, err := s.selectKeys(fields)
	if err != nil {
		return nil, err
	}
	group, err := s.compileGroup(doc.GroupBy)
	if err != nil {
		return nil, err
	}

	limit := c.cfg.DefaultLimit
	if doc.Limit != nil {
		limit = *doc.Limit
	}
	offset := c.cfg.DefaultOffset
	if doc.Offset != nil {
		offset = *doc.Offset
	}
	limit, offset = paginate.Clamp(limit, offset, c.cfg.MaxLimit)

	includePagination := c.cfg.IncludePagination
	if doc.IncludePagination != nil {
		includePagination = *doc.IncludePagination
	}

	plan := &queryir.Plan{
		Entity:            root.Name,
		Table:             root.Table,
		PrimaryKey:        primaryKeyColumn(root),
		JoinKind:          kind,
		Joins:             s.resolver.Joins(),
		Predicate:         predicate,
		Sort:              sortKeys,
		Projection:        fields,
		Keys:              keys,
		Group:             group,
		Window:            queryir.Window{Limit: limit, Offset: offset},
		MaxTotal:          c.cfg.MaxLimit,
		IncludePagination: includePagination,
	}

	plan.ID, err = ir.Fingerprint(ir.DomainPlan, ir.Object{
		"entity":             ir.String(root.Name),
		"document":           doc.Raw(),
		"limit":              ir.Int(limit),
		"offset":             ir.Int(offset),
		"max_total":          ir.Int(plan.MaxTotal),
		"include_pagination": ir.Bool(includePagination),
		"strict_temporal":    ir.Bool(c.cfg.StrictTemporal),
		"include_pk":         ir.Bool(c.cfg.IncludePrimaryKey),
	})
	if err != nil {
		return nil, malformed("", "%v", err)
	}

	if err := queryir.Validate(plan).Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", entity, err)
	}
	return plan, nil
}

func joinKind(name string) (queryir.JoinKind, error) {
	switch name {
	case "", string(queryir.JoinInner):
		return queryir.JoinInner, nil
	case string(queryir.JoinLeft), "outer", "left_outer":
		return queryir.JoinLeft, nil
	default:
		return "", malformed(keyJoinType, "join_type must be inner or left, got %q", name)
	}
}

func primaryKeyColumn(e *catalog.Entity) string {
	if f, ok := e.Fields[e.PrimaryKey]; ok {
		return f.Column
	}
	return e.PrimaryKey
}
