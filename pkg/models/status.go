package models

// Status is the lifecycle state of an establishment request.
type Status string

const (
	StatusSubmitted                  Status = "SUBMITTED"
	StatusContactConfirmationPending Status = "CONTACT_CONFIRMATION_PENDING"
	StatusContactConfirmed           Status = "CONTACT_CONFIRMED"
	StatusContactRejected            Status = "CONTACT_REJECTED"
	StatusNameRevisionRequired       Status = "NAME_REVISION_REQUIRED"
	StatusProposalRequired           Status = "PROPOSAL_REQUIRED"
	StatusProposalSubmitted          Status = "PROPOSAL_SUBMITTED"
	StatusProposalApproved           Status = "PROPOSAL_APPROVED"
	StatusProposalRejected           Status = "PROPOSAL_REJECTED"
	StatusDefenseScheduleProposed    Status = "DEFENSE_SCHEDULE_PROPOSED"
	StatusDefenseScheduleApproved    Status = "DEFENSE_SCHEDULE_APPROVED"
	StatusDefenseScheduleRejected    Status = "DEFENSE_SCHEDULE_REJECTED"
	StatusDefenseCompleted           Status = "DEFENSE_COMPLETED"
	StatusFinalFormSubmitted         Status = "FINAL_FORM_SUBMITTED"
	StatusApproved                   Status = "APPROVED"
	StatusRejected                   Status = "REJECTED"
)

var allStatuses = []Status{
	StatusSubmitted,
	StatusContactConfirmationPending,
	StatusContactConfirmed,
	StatusContactRejected,
	StatusNameRevisionRequired,
	StatusProposalRequired,
	StatusProposalSubmitted,
	StatusProposalApproved,
	StatusProposalRejected,
	StatusDefenseScheduleProposed,
	StatusDefenseScheduleApproved,
	StatusDefenseScheduleRejected,
	StatusDefenseCompleted,
	StatusFinalFormSubmitted,
	StatusApproved,
	StatusRejected,
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)

	return out
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}

	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusContactRejected
}

// Rejected reports whether s is a terminal rejection.
func (s Status) Rejected() bool {
	return s == StatusRejected || s == StatusContactRejected
}
