package harness

import (
	"github.com/roach88/seqx/internal/store"
	"github.com/roach88/seqx/internal/txn"
)

// request is the item every scenario sequence sends.
type request struct {
	*txn.Item
	A, B      int
	duplicate bool
}

// response carries a+b back, linked to its request.
type response struct {
	*txn.Item
	Result int
}

// Result is the outcome of a scenario run.
type Result struct {
	Pass      bool         `json:"pass"`
	Scenario  string       `json:"scenario"`
	RunID     string       `json:"run_id"`
	Errors    []string     `json:"errors,omitempty"`
	Fetched   []string     `json:"fetched"`
	Sequences []Transcript `json:"sequences"`

	// Trace is the run's full exchange log, in recorder order.
	Trace []store.TraceEvent `json:"trace,omitempty"`
}

// Transcript records what one sequence did and saw.
type Transcript struct {
	Name      string           `json:"name"`
	Sent      []string         `json:"sent"`
	Responses []ResponseRecord `json:"responses,omitempty"`
	Steps     []string         `json:"steps"`

	// Error and Code are set when the sequence stopped with an error.
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// ResponseRecord is one retrieved response.
type ResponseRecord struct {
	ID         string `json:"id"`
	RequestID  string `json:"request_id"`
	ProducerID string `json:"producer_id"`
	Result     int    `json:"result"`
}

// NewResult creates a passing result for scenario.
func NewResult(scenario string) *Result {
	return &Result{
		Pass:      true,
		Scenario:  scenario,
		Errors:    []string{},
		Fetched:   []string{},
		Sequences: []Transcript{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Transcript returns the transcript of the named sequence.
func (r *Result) Transcript(name string) (Transcript, bool) {
	for _, t := range r.Sequences {
		if t.Name == name {
			return t, true
		}
	}
	return Transcript{}, false
}
