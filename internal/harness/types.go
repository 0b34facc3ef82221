package harness

import "github.com/roach88/toglayer/internal/ir"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Session is the journal session the run recorded under.
	Session string `json:"session"`

	// Trace holds the journaled transitions in seq order.
	Trace []ir.Transition `json:"trace"`

	// Layers lists the layers active when the flow ended.
	Layers []ir.LayerID `json:"layers"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(session string) *Result {
	return &Result{
		Pass:    true,
		Session: session,
		Trace:   []ir.Transition{},
		Layers:  []ir.LayerID{},
		Errors:  []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// LayerActive reports whether layer was active at the end of the flow.
func (r *Result) LayerActive(layer ir.LayerID) bool {
	for _, l := range r.Layers {
		if l == layer {
			return true
		}
	}
	return false
}
