package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/compiler"
	"github.com/roach88/querymate/internal/config"
	"github.com/roach88/querymate/internal/engine"
	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
	"github.com/roach88/querymate/internal/querysql"
	"github.com/roach88/querymate/internal/store"
)

// Harness is the scenario execution context.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	renderer *querysql.Renderer
	plans    map[string]*queryir.Plan
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh database file under a temporary directory
// for isolation (an in-memory database would not be shared across the
// store's connections).
//
// Execution flow:
// 1. Load the catalog and apply config overrides
// 2. Create the database and run schema scripts and setup statements
// 3. Run each query through the engine, checking its expect clause
// 4. Evaluate assertions
// 5. Return result with pass/fail, outputs, and errors
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	cat, err := catalog.LoadFile(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	cfg, err := scenarioConfig(scenario.Config)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "querymate-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	if err := loadFixtures(ctx, st, scenario); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store:    st,
		engine:   engine.New(compiler.New(cat, cfg), st, engine.WithLogger(logger)),
		renderer: querysql.NewRenderer(querysql.SQLite),
		plans:    make(map[string]*queryir.Plan),
		logger:   logger,
	}

	result := NewResult()
	for _, q := range scenario.Queries {
		out, err := h.runQuery(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		result.Outputs = append(result.Outputs, out)
		for _, msg := range checkExpect(q, out) {
			result.AddError(msg)
		}
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
		Plans: h.plans,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// scenarioConfig applies overrides on top of the defaults through viper, so
// keys and validation match config files.
func scenarioConfig(overrides map[string]any) (config.Config, error) {
	v := config.NewViper()
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.Load(v, "")
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid scenario config: %w", err)
	}
	return cfg, nil
}

func loadFixtures(ctx context.Context, st *store.Store, scenario *Scenario) error {
	for _, path := range scenario.Schema {
		script, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read schema: %w", err)
		}
		if err := st.Exec(ctx, string(script)); err != nil {
			return fmt.Errorf("schema %s: %w", filepath.Base(path), err)
		}
	}
	for i, stmt := range scenario.Setup {
		if err := st.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	return nil
}

// runQuery executes one step. Compile errors are recorded in the output;
// any other failure aborts the scenario.
func (h *Harness) runQuery(ctx context.Context, q QueryStep) (QueryOutput, error) {
	out := QueryOutput{Name: q.Name, Entity: q.Entity}

	doc, err := compiler.DocumentFromMap(q.Spec)
	if err != nil {
		out.Error = string(compiler.CodeOf(err))
		return out, nil
	}

	resp, err := h.engine.Query(ctx, q.Entity, doc)
	if code := compiler.CodeOf(err); code != "" {
		out.Error = string(code)
		return out, nil
	}
	if err != nil {
		return out, err
	}

	h.plans[q.Name] = resp.Plan
	out.PlanID = resp.Plan.ID
	if out.SQL, _, err = h.renderer.Select(resp.Plan); err != nil {
		return out, err
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return out, fmt.Errorf("encode response: %w", err)
	}
	if out.Response, err = ir.Decode(data); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}

	h.logger.Debug("scenario query executed", "query", q.Name, "plan_id", out.PlanID)
	return out, nil
}
