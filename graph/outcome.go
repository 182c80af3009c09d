package graph

import (
	"encoding/json"
	"time"
)

// Reason names why a run failed. Pipelines define their own reasons next to
// the engine reasons below.
type Reason string

// Engine failure reasons.
const (
	ReasonStepBudgetExceeded Reason = "step_budget_exceeded"
	ReasonStepFault          Reason = "step_fault"
	ReasonTimeout            Reason = "timeout"
	ReasonCancelled          Reason = "cancelled"
	ReasonUnknownStep        Reason = "unknown_step"
)

// Status tags an Outcome.
type Status string

// Outcome statuses.
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the terminal value of a run. It always carries the final State,
// so a failure still exposes everything collected before it.
type Outcome struct {
	RunID    string
	Graph    string
	Status   Status
	Payload  any
	Reason   Reason
	Err      error
	Steps    int
	Path     []string
	Duration time.Duration
	State    *State
}

// Succeeded reports whether the run ended in success.
func (o *Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Error returns the failure message, or an empty string.
func (o *Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// MarshalJSON encodes the Outcome for callers and the HTTP surface.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	path := o.Path
	if path == nil {
		path = []string{}
	}
	return json.Marshal(struct {
		RunID      string   `json:"run_id"`
		Graph      string   `json:"graph"`
		Status     Status   `json:"status"`
		Payload    any      `json:"payload,omitempty"`
		Reason     Reason   `json:"reason,omitempty"`
		Error      string   `json:"error,omitempty"`
		Steps      int      `json:"steps"`
		Path       []string `json:"path"`
		DurationMS int64    `json:"duration_ms"`
		State      *State   `json:"state"`
	}{
		RunID:      o.RunID,
		Graph:      o.Graph,
		Status:     o.Status,
		Payload:    o.Payload,
		Reason:     o.Reason,
		Error:      o.Error(),
		Steps:      o.Steps,
		Path:       path,
		DurationMS: o.Duration.Milliseconds(),
		State:      o.State,
	})
}
