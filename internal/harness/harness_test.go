package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
			assert.Len(t, result.Outputs, len(s.Queries))
		})
	}
}

func TestRun_RecordsPlanAndSQL(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/filtering.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	adults, ok := result.Output("adults")
	require.True(t, ok)
	assert.NotEmpty(t, adults.PlanID)
	assert.Contains(t, adults.SQL, `WHERE "users"."age" > ?`)
	assert.Empty(t, adults.Error)

	again, ok := result.Output("adults_again")
	require.True(t, ok)
	assert.Equal(t, adults.PlanID, again.PlanID)

	bad, ok := result.Output("unknown_field")
	require.True(t, ok)
	assert.Equal(t, "UNKNOWN_FIELD", bad.Error)
	assert.Empty(t, bad.PlanID)
	assert.Nil(t, bad.Response)

	_, ok = result.Output("missing")
	assert.False(t, ok)
}

func TestRun_FailingExpectations(t *testing.T) {
	path := writeScenario(t, `
name: failing
description: "expectations that do not hold"
catalog: blog.yaml
schema: [blog.sql]
queries:
  - name: adults
    entity: users
    spec: {filter: {age: {gt: 18}}}
    expect:
      ids: [1, 2]
      total: 3
  - name: wrong_error
    entity: users
    spec: {filter: {age: 1}}
    expect:
      error: UNKNOWN_FIELD
  - name: unexpected_error
    entity: users
    spec: {filter: {nope: 1}}
assertions:
  - type: plan_joins
    query: adults
    joins: [posts]
  - type: row_count
    table: users
    count: 4
  - type: plan_joins
    query: unexpected_error
    joins: []
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	all := strings.Join(result.Errors, "\n")
	assert.Contains(t, all, "expect.ids (query adults)")
	assert.Contains(t, all, "Expected: [1,2]")
	assert.Contains(t, all, "Actual: [1,3,4]")
	assert.Contains(t, all, "expect.total (query adults)")
	assert.Contains(t, all, "Actual: null")
	assert.Contains(t, all, "expect.error (query wrong_error)")
	assert.Contains(t, all, "expect.error (query unexpected_error)")
	assert.Contains(t, all, "Assertion failed: plan_joins (query adults)")
	assert.Contains(t, all, "4 rows in users where (no conditions)")
	assert.Contains(t, all, "query did not compile")
	assert.Len(t, result.Errors, 7)
}

func TestRun_SetupAndConfig(t *testing.T) {
	path := writeScenario(t, `
name: setup
description: "setup statements and config overrides"
catalog: blog.yaml
schema: [blog.sql]
setup:
  - "INSERT INTO users (id, name, age, active) VALUES (6, 'Fay', 40, 1)"
config:
  default_limit: 2
  include_pagination: true
queries:
  - name: adults
    entity: users
    spec: {filter: {age: {gt: 18}}, sort: [id]}
    expect:
      ids: [1, 3]
      total: 4
assertions:
  - type: row_count
    table: users
    where: {name: Fay, active: true}
    count: 1
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeScenario(t, `
name: bad_config
description: "default_limit above max_limit"
catalog: blog.yaml
config:
  max_limit: 5
  default_limit: 10
queries:
  - {name: q, entity: users}
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario config")
}

func TestRun_BadSetup(t *testing.T) {
	path := writeScenario(t, `
name: bad_setup
description: "setup against a missing table"
catalog: blog.yaml
setup:
  - "INSERT INTO nowhere VALUES (1)"
queries:
  - {name: q, entity: users}
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0]")
}
