package harness

// OutcomeOK is the outcome of a step that succeeded.
const OutcomeOK = "ok"

// TraceEvent records one flow step and what it produced.
type TraceEvent struct {
	Seq    int            `json:"seq"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`

	// Outcome is OutcomeOK or the domain error code.
	Outcome string         `json:"outcome"`
	Result  map[string]any `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step met its expectation and
	// every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event, numbering it in sequence.
func (r *Result) AddTrace(action string, args map[string]any, outcome string, result map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     len(r.Trace) + 1,
		Action:  action,
		Args:    args,
		Outcome: outcome,
		Result:  result,
	})
}
