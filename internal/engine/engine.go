package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/querymate/internal/compiler"
	"github.com/roach88/querymate/internal/paginate"
	"github.com/roach88/querymate/internal/queryir"
)

// DefaultParallelism is the number of group pages fetched at once.
const DefaultParallelism = 4

// Engine compiles documents and runs the resulting plans.
//
// Thread-safety model:
//   - Query, Run, RunGrouped: safe from any goroutine
//   - the Executor must itself be safe for concurrent use
type Engine struct {
	compiler    *compiler.Compiler
	exec        Executor
	logger      *slog.Logger
	parallelism int
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithParallelism sets how many group pages are fetched concurrently.
// Values below 1 are ignored.
func WithParallelism(n int) EngineOption {
	return func(e *Engine) {
		if n >= 1 {
			e.parallelism = n
		}
	}
}

// New creates an Engine over a compiler and an executor.
func New(c *compiler.Compiler, exec Executor, opts ...EngineOption) *Engine {
	e := &Engine{
		compiler:    c,
		exec:        exec,
		logger:      slog.Default(),
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the response to an ungrouped plan.
type Result struct {
	Items      []Item         `json:"items"`
	Pagination *paginate.Meta `json:"pagination,omitempty"`
}

// Group is one group of a grouped response.
type Group struct {
	Key        any            `json:"key"`
	Items      []Item         `json:"items"`
	Pagination *paginate.Meta `json:"pagination,omitempty"`
}

// GroupedResult is the response to a grouped plan. Truncated reports that
// the global item cap stopped group filling before every eligible item was
// returned.
type GroupedResult struct {
	Groups    []Group `json:"groups"`
	Truncated bool    `json:"truncated"`
}

// Response is the outcome of Query: exactly one of Result and Grouped is
// set.
type Response struct {
	Plan    *queryir.Plan
	Result  *Result
	Grouped *GroupedResult
}

// MarshalJSON renders whichever result is set.
func (r *Response) MarshalJSON() ([]byte, error) {
	if r.Grouped != nil {
		return json.Marshal(r.Grouped)
	}
	return json.Marshal(r.Result)
}

// Query compiles doc against entity and runs the plan.
func (e *Engine) Query(ctx context.Context, entity string, doc *compiler.Document) (*Response, error) {
	p, err := e.compiler.Compile(entity, doc)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("plan compiled",
		"entity", p.Entity,
		"plan_id", p.ID,
		"joins", len(p.Joins),
		"grouped", p.Group != nil,
	)

	resp := &Response{Plan: p}
	if p.Group != nil {
		resp.Grouped, err = e.RunGrouped(ctx, p)
	} else {
		resp.Result, err = e.Run(ctx, p)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// QueryJSON parses a JSON document and runs it.
func (e *Engine) QueryJSON(ctx context.Context, entity string, data []byte) (*Response, error) {
	doc, err := compiler.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, entity, doc)
}

// Run executes an ungrouped plan.
func (e *Engine) Run(ctx context.Context, p *queryir.Plan) (*Result, error) {
	rows, err := e.exec.Fetch(ctx, p)
	if err != nil {
		return nil, newFetchError(p.ID, err)
	}
	res := &Result{Items: Assemble(p, rows)}

	if p.IncludePagination {
		total, err := e.exec.Count(ctx, p)
		if err != nil {
			return nil, newCountError(p.ID, err)
		}
		meta := paginate.Plan(total, p.Window.Limit, p.Window.Offset)
		res.Pagination = &meta
	}

	e.logger.Info("query executed",
		"entity", p.Entity,
		"plan_id", p.ID,
		"rows", len(rows),
		"items", len(res.Items),
	)
	return res, nil
}

// RunGrouped executes a grouped plan.
//
// Window.Limit bounds the items of each group and MaxTotal bounds the sum
// across groups. Groups are admitted in ascending key order; a group whose
// window lies past its total is reported with no items.
func (e *Engine) RunGrouped(ctx context.Context, p *queryir.Plan) (*GroupedResult, error) {
	counts, err := e.exec.GroupCounts(ctx, p)
	if err != nil {
		return nil, newCountError(p.ID, err)
	}

	eligible := make([]int, len(counts))
	for i, c := range counts {
		eligible[i] = paginate.Eligible(c.Total, p.Window.Limit, p.Window.Offset)
	}
	take, truncated := paginate.Allocate(eligible, p.MaxTotal)

	groups := make([]Group, len(take))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)

	for i, n := range take {
		c := counts[i]
		groups[i] = Group{Key: c.Key, Items: []Item{}}
		if p.IncludePagination {
			meta := paginate.Plan(c.Total, p.Window.Limit, p.Window.Offset)
			groups[i].Pagination = &meta
		}
		if n == 0 {
			continue
		}

		g.Go(func() error {
			rows, err := e.exec.FetchGroup(gctx, p, c.Key, n, p.Window.Offset)
			if err != nil {
				return newGroupError(p.ID, c.Key, err)
			}
			groups[i].Items = Assemble(p, rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if truncated {
		e.logger.Info("group filling truncated",
			"plan_id", p.ID,
			"max_total", p.MaxTotal,
			"groups", len(counts),
			"admitted", len(take),
		)
	}
	e.logger.Info("grouped query executed",
		"entity", p.Entity,
		"plan_id", p.ID,
		"groups", len(groups),
		"truncated", truncated,
	)
	return &GroupedResult{Groups: groups, Truncated: truncated}, nil
}
