package harness

import "github.com/roach88/querymate/internal/ir"

// QueryOutput records one executed query of a scenario.
type QueryOutput struct {
	Name   string `json:"name"`
	Entity string `json:"entity"`

	// PlanID is the compiled plan's fingerprint; empty when compilation
	// failed.
	PlanID string `json:"plan_id,omitempty"`

	// SQL is the SQLite rendering of the row query.
	SQL string `json:"sql,omitempty"`

	// Error is the compile error code, when the query failed to compile.
	Error string `json:"error,omitempty"`

	// Response is the engine response decoded from its JSON form, so it
	// compares like the YAML expectations do.
	Response ir.Value `json:"response,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Outputs holds every query in scenario order.
	Outputs []QueryOutput `json:"outputs"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Outputs: []QueryOutput{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Output returns the output of the named query.
func (r *Result) Output(name string) (QueryOutput, bool) {
	for _, o := range r.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return QueryOutput{}, false
}
