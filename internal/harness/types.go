package harness

import "github.com/roach88/mfnet/internal/ir"

// TraceEvent is one recorded evaluator event.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"` // "scheduled", "executed" or "finished"
	Node   string `json:"node"`
	Worker int    `json:"worker"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// RunID identifies the recorded run; empty when evaluation failed
	// before the evaluator started.
	RunID string `json:"run_id,omitempty"`

	// Outputs holds the computed graph outputs.
	Outputs ir.IRObject `json:"outputs,omitempty"`

	// Trace contains the recorded evaluator events ordered by seq.
	Trace []TraceEvent `json:"trace"`

	// Network is the dump of the optimized network.
	Network string `json:"network,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Warnings are the mapping warnings for the document.
	Warnings []string `json:"warnings,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Outputs: ir.IRObject{},
		Trace:   []TraceEvent{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Executions returns how many times the node named name executed.
func (r *Result) Executions(name string) int {
	return executions(r.Trace, name)
}
