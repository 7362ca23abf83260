package harness

import (
	"github.com/roach88/qbind/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expectations match.
	Pass bool `json:"pass"`

	// RunID is the run id the resolution logged under.
	RunID string `json:"run_id"`

	// SQL and Params are the compiled statement. Empty when resolution
	// failed.
	SQL    string `json:"sql,omitempty"`
	Params []any  `json:"params,omitempty"`

	// Rows are the rows returned by the seeded database, nil without a
	// seed.
	Rows *store.Rows `json:"rows,omitempty"`

	// ErrorCode and Error describe a failed resolution.
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
