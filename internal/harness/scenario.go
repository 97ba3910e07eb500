package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios load a catalog and a SQLite fixture, run query documents through
// the compiler and the engine, and check the responses.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is the path to a YAML or CUE catalog definition.
	// Relative paths resolve against the scenario file location.
	Catalog string `yaml:"catalog"`

	// Schema lists SQL scripts run in order before the queries.
	// Relative paths resolve against the scenario file location.
	Schema []string `yaml:"schema"`

	// Setup contains extra SQL statements run after the schema scripts.
	Setup []string `yaml:"setup,omitempty"`

	// Config overrides settings by key (e.g. max_limit: 5).
	Config map[string]any `yaml:"config,omitempty"`

	// Queries run in order; each may carry an expect clause.
	Queries []QueryStep `yaml:"queries"`

	// Assertions validate plans and fixture state after the queries ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// QueryStep is one query document against one entity.
type QueryStep struct {
	// Name identifies the step in assertions and golden files.
	Name string `yaml:"name"`

	// Entity is the root entity.
	Entity string `yaml:"entity"`

	// Spec is the query document compiled for Entity.
	Spec map[string]any `yaml:"spec"`

	// Expect specifies the expected response.
	// If nil, the query only has to succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected query behavior. Every field is optional;
// only the fields given are checked.
type ExpectClause struct {
	// Error is the expected compile error code (e.g. "UNKNOWN_FIELD").
	Error string `yaml:"error,omitempty"`

	// IDs are the expected item ids, in order.
	IDs []any `yaml:"ids,omitempty"`

	// Count is the expected number of items.
	Count *int `yaml:"count,omitempty"`

	// Items are matched in order with subset semantics per item; the item
	// count must match exactly.
	Items []map[string]any `yaml:"items,omitempty"`

	// Total is the expected pagination total.
	Total *int `yaml:"total,omitempty"`

	// Groups are the expected groups, in order; the group count must match.
	Groups []GroupExpect `yaml:"groups,omitempty"`

	// Truncated is the expected grouped truncation flag.
	Truncated *bool `yaml:"truncated,omitempty"`
}

// GroupExpect specifies one expected group.
type GroupExpect struct {
	Key   any   `yaml:"key"`
	IDs   []any `yaml:"ids,omitempty"`
	Count *int  `yaml:"count,omitempty"`
}

// Assertion validates plans or fixture state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "plan_joins": Check the join paths of a query's plan
	// - "same_plan": Check that queries compile to the same plan
	// - "sql_contains": Check a query's rendered SQL for a fragment
	// - "row_count": Count fixture rows matching where
	Type string `yaml:"type"`

	// Query names the query step (plan_joins, sql_contains).
	Query string `yaml:"query,omitempty"`

	// Queries names the query steps compared by same_plan.
	Queries []string `yaml:"queries,omitempty"`

	// Joins are the expected join paths in plan order (plan_joins).
	Joins []string `yaml:"joins,omitempty"`

	// Dialect selects the SQL dialect for sql_contains (default sqlite).
	Dialect string `yaml:"dialect,omitempty"`

	// Contains is the SQL fragment expected by sql_contains.
	Contains string `yaml:"contains,omitempty"`

	// Table is the fixture table name (row_count).
	Table string `yaml:"table,omitempty"`

	// Where specifies equality filters (row_count).
	Where map[string]any `yaml:"where,omitempty"`

	// Count is the expected number of rows (row_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertPlanJoins   = "plan_joins"
	AssertSamePlan    = "same_plan"
	AssertSQLContains = "sql_contains"
	AssertRowCount    = "row_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Catalog and schema paths are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "query:" vs "queries:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	scenario.Catalog = resolvePath(base, scenario.Catalog)
	for i, p := range scenario.Schema {
		scenario.Schema[i] = resolvePath(base, p)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, in file name order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
		return fmt.Errorf("catalog file not found: %s", s.Catalog)
	}

	for _, p := range s.Schema {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", p)
		}
	}

	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if names[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		names[q.Name] = true
		if q.Entity == "" {
			return fmt.Errorf("queries[%d]: entity is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, names); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, queries map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPlanJoins, AssertSQLContains:
		if !queries[a.Query] {
			return fmt.Errorf("assertions[%d]: unknown query %q for %s", index, a.Query, a.Type)
		}
		if a.Type == AssertSQLContains && a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for sql_contains", index)
		}
	case AssertSamePlan:
		if len(a.Queries) < 2 {
			return fmt.Errorf("assertions[%d]: same_plan needs at least two queries", index)
		}
		for _, q := range a.Queries {
			if !queries[q] {
				return fmt.Errorf("assertions[%d]: unknown query %q for same_plan", index, q)
			}
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
