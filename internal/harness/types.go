package harness

import (
	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/store"
)

// StepResult is what one step produced.
type StepResult struct {
	// Ask is the question text.
	Ask string `json:"ask"`

	// Resolution is the pipeline trace. It is nil only when the request
	// failed validation or was cancelled.
	Resolution *engine.Resolution `json:"resolution,omitempty"`

	// Rejection is set when the shape was UNRESOLVED.
	Rejection *engine.Rejection `json:"rejection,omitempty"`

	// Answer is the storage result when the step asked for one and the
	// plan executed.
	Answer *store.Result `json:"answer,omitempty"`

	// Err is any other error, rendered as text.
	Err string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass indicates overall test success.
	// True if all expect clauses match.
	Pass bool `json:"pass"`

	// Steps holds one entry per scenario step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
