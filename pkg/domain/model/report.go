package model

import "time"

// ActionType is the decision taken for a finding or a tracking record
type ActionType string

const (
	ActionCreated  ActionType = "created"
	ActionAppended ActionType = "appended"
	ActionResolved ActionType = "resolved"
	ActionClosed   ActionType = "closed"
	ActionSkipped  ActionType = "skipped"
)

// Action records one decision of a reconciliation run
type Action struct {
	Type         ActionType `json:"type"`
	Key          string     `json:"key"`
	Repo         string     `json:"repo,omitempty"`
	TicketNumber int        `json:"ticket_number,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

// RunReport is the outcome of one reconciliation run
type RunReport struct {
	RunID        string    `json:"run_id"`
	Target       string    `json:"target"`
	TrackingRepo string    `json:"tracking_repo"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Actions      []Action  `json:"actions"`
}

// Count returns the number of actions of the given type
func (r *RunReport) Count(t ActionType) int {
	n := 0
	for _, a := range r.Actions {
		if a.Type == t {
			n++
		}
	}
	return n
}

// HasMutation reports whether the run changed any ticket
func (r *RunReport) HasMutation() bool {
	for _, a := range r.Actions {
		if a.Type != ActionSkipped {
			return true
		}
	}
	return false
}
