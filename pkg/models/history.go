package models

import "time"

// WorkflowHistoryEntry records one committed transition. Entries are
// append-only and never deleted.
type WorkflowHistoryEntry struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"request_id"`
	StepCode   string        `json:"step_code"`
	Action     string        `json:"action"`
	FromStatus Status        `json:"from_status"`
	ToStatus   Status        `json:"to_status"`
	ActorID    string        `json:"actor_id"`
	Comment    string        `json:"comment,omitempty"`
	Result     DefenseResult `json:"result,omitempty"`
	ActionDate time.Time     `json:"action_date"`
}

// WorkflowStep is a milestone of the lifecycle used for progress display.
type WorkflowStep struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index"`
}

// DefenseResult is the outcome recorded when a defense is completed.
type DefenseResult string

const (
	DefensePassed DefenseResult = "PASSED"
	DefenseFailed DefenseResult = "FAILED"
)

// Valid reports whether r is a known result.
func (r DefenseResult) Valid() bool {
	return r == DefensePassed || r == DefenseFailed
}
