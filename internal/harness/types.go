package harness

// TraceEvent is one solved goal of a scenario run.
type TraceEvent struct {
	Goal       string            `json:"goal"`
	Query      string            `json:"query"`
	Obligation string            `json:"obligation"`
	Kind       string            `json:"kind"`
	Guidance   string            `json:"guidance,omitempty"`
	Solution   string            `json:"solution"`
	Status     string            `json:"status"`
	Bindings   map[string]string `json:"bindings,omitempty"` // caller variable name -> type
	Holes      map[string]string `json:"holes,omitempty"`    // site path -> type, "_" when undetermined
	FuelUsed   int               `json:"fuel_used"`
	Seq        int64             `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// SessionID is the solve log session the run was recorded under.
	SessionID string `json:"session_id"`

	// Trace lists solved goals in scenario order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
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

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a solved goal.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
