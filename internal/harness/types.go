package harness

import (
	"github.com/roach88/limitidx/internal/engine"
	"github.com/roach88/limitidx/internal/order"
)

// Step is how the engine handled one scenario event.
type Step struct {
	Index  int    `json:"index"`
	Origin string `json:"origin"`
	Result string `json:"result"`

	// ID is empty when the event carries no derivable identity.
	ID string `json:"id,omitempty"`
}

// Counts mirrors engine.Summary without the wall-clock duration.
type Counts struct {
	Events    int `json:"events"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Malformed int `json:"malformed"`
	Encoding  int `json:"encoding"`
}

func countsOf(s engine.Summary) Counts {
	return Counts{
		Events:    s.Events,
		Created:   s.Created,
		Updated:   s.Updated,
		Malformed: s.Malformed,
		Encoding:  s.Encoding,
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect_error and expectation matched.
	Pass bool `json:"pass"`

	RunID  string `json:"run_id"`
	Counts Counts `json:"counts"`

	// Steps has one entry per scenario event, in event order.
	Steps []Step `json:"steps"`

	// Records is the final store contents ordered by ID.
	Records []order.Record `json:"records"`

	// Errors is empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Steps:   []Step{},
		Records: []order.Record{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// record returns the final record with id, if any.
func (r *Result) record(id string) (order.Record, bool) {
	for _, rec := range r.Records {
		if rec.ID == id {
			return rec, true
		}
	}
	return order.Record{}, false
}
