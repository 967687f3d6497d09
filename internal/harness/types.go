package harness

import "github.com/roach88/qplan/internal/ir"

// Outcome is the result of compiling a scenario for one dialect.
type Outcome struct {
	// Ref is the dialect reference as written in the scenario.
	Ref string `json:"ref"`

	// Dialect is the resolved dialect, e.g. "sqlite/3".
	Dialect string `json:"dialect"`

	SQL    string   `json:"sql,omitempty"`
	Params []string `json:"params,omitempty"`

	// Error is the compilation error text, if any.
	Error string `json:"error,omitempty"`

	// Rows holds the sandbox result for sqlite outcomes that were run.
	Rows []ir.Object `json:"-"`
	Ran  bool        `json:"ran,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation matched.
	Pass bool `json:"pass"`

	// Fingerprint is the content hash of the scenario's document.
	Fingerprint string `json:"fingerprint"`

	// Outcomes are in the scenario's dialect order.
	Outcomes []Outcome `json:"outcomes"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Outcomes: []Outcome{},
		Errors:   []string{},
	}
}

// AddError records an expectation failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}
