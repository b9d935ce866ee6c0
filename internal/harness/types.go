package harness

import "github.com/roach88/galactic/internal/mel"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and invariant held.
	Pass bool `json:"pass"`

	// Steps holds one entry per scenario step, in order.
	Steps []StepResult `json:"steps"`

	// Errors lists every failed expectation and invariant.
	Errors []string `json:"errors,omitempty"`
}

// StepResult is what one step produced.
type StepResult struct {
	Kind string `json:"kind"`

	// apply
	Counts     map[string]int `json:"counts,omitempty"`
	Objects    []string       `json:"objects,omitempty"`
	Deleted    []string       `json:"deleted,omitempty"`
	Recomputed bool           `json:"recomputed,omitempty"`

	// mel
	Report *mel.Report `json:"report,omitempty"`

	// encode
	Records []string `json:"records,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
