// Package harness provides scenario-driven conformance tests for the query
// compiler and engine.
//
// A scenario loads a catalog, builds a fresh SQLite database from schema
// scripts, runs query documents end to end (compile, render, execute,
// paginate) and checks the responses.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	catalog: blog.yaml
//	schema:
//	  - blog.sql
//	setup:
//	  - "INSERT INTO users (id, name) VALUES (9, 'Zed')"
//	config:
//	  max_limit: 5
//	queries:
//	  - name: adults
//	    entity: users
//	    spec:
//	      filter: {age: {gt: 18}}
//	      sort: [name]
//	    expect:
//	      ids: [1, 3, 4]
//	      total: 3
//	  - name: bad_field
//	    entity: users
//	    spec: {filter: {nope: 1}}
//	    expect:
//	      error: UNKNOWN_FIELD
//	assertions:
//	  - type: plan_joins
//	    query: adults
//	    joins: []
//	  - type: row_count
//	    table: users
//	    where: {active: true}
//	    count: 3
//
// Catalog and schema paths are relative to the scenario file.
//
// # Expectations
//
// An expect clause may check the compile error code, item ids in order,
// item count, items (subset match per item), the pagination total, groups
// (key, ids, count) and the truncation flag. Values compare by canonical
// JSON, so YAML integers match decoded response numbers.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - plan_joins: Verifies the join paths of a query's plan, in order
//   - same_plan: Verifies that queries compile to the same plan fingerprint
//   - sql_contains: Verifies a fragment of a query's rendered SQL
//   - row_count: Counts fixture rows matching equality filters
//
// # Golden Files
//
// RunWithGolden snapshots every response as canonical JSON under
// testdata/golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
