package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/querymate/internal/ir"
)

// Snapshot captures the responses of a scenario execution.
// Plan IDs and SQL text are left out so that golden files change only when
// results do.
type Snapshot struct {
	ScenarioName string
	Outputs      []QueryOutput
}

// toValue converts a Snapshot to an ir.Value for canonical JSON serialization.
func (s *Snapshot) toValue() ir.Value {
	queries := make(ir.Array, len(s.Outputs))
	for i, o := range s.Outputs {
		q := ir.Object{
			"name":   ir.String(o.Name),
			"entity": ir.String(o.Entity),
		}
		if o.Error != "" {
			q["error"] = ir.String(o.Error)
		}
		if o.Response != nil {
			q["response"] = o.Response
		}
		queries[i] = q
	}

	return ir.Object{
		"scenario": ir.String(s.ScenarioName),
		"queries":  queries,
	}
}

// SnapshotJSON returns the canonical JSON snapshot of a result, the exact
// bytes stored in golden files.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	s := Snapshot{ScenarioName: scenarioName, Outputs: result.Outputs}
	return ir.MarshalCanonical(s.toValue())
}

// RunWithGolden executes a scenario and compares its responses against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if responses don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result's responses against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
