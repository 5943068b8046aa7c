// Package catalog holds the fixed, ordered list of lifecycle milestones of an
// establishment request and derives progress from status and history.
package catalog

import (
	"fmt"

	"github.com/dukex/clubflow/pkg/models"
)

const (
	StepRequestSubmission   = "REQUEST_SUBMISSION"
	StepRequestReview       = "REQUEST_REVIEW"
	StepContactConfirmation = "CONTACT_CONFIRMATION"
	StepProposalSubmission  = "PROPOSAL_SUBMISSION"
	StepProposalApproval    = "PROPOSAL_APPROVAL"
	StepDefenseScheduling   = "DEFENSE_SCHEDULING"
	StepDefense             = "DEFENSE"
	StepFinalFormSubmission = "FINAL_FORM_SUBMISSION"
	StepClubEstablished     = "CLUB_ESTABLISHED"
)

var steps = []models.WorkflowStep{
	{Code: StepRequestSubmission, Name: "Request submission", Description: "The student submits the establishment request.", OrderIndex: 1},
	{Code: StepRequestReview, Name: "Request review", Description: "Staff receives the request and verifies the contact details.", OrderIndex: 2},
	{Code: StepContactConfirmation, Name: "Contact confirmation", Description: "Contact is confirmed; the club name may need revision.", OrderIndex: 3},
	{Code: StepProposalSubmission, Name: "Proposal submission", Description: "The student submits the club proposal.", OrderIndex: 4},
	{Code: StepProposalApproval, Name: "Proposal approval", Description: "Staff approved the proposal.", OrderIndex: 5},
	{Code: StepDefenseScheduling, Name: "Defense scheduling", Description: "The student proposes a defense schedule for staff review.", OrderIndex: 6},
	{Code: StepDefense, Name: "Defense", Description: "The approved defense takes place.", OrderIndex: 7},
	{Code: StepFinalFormSubmission, Name: "Final form submission", Description: "The student submits the final establishment form.", OrderIndex: 8},
	{Code: StepClubEstablished, Name: "Club established", Description: "The club has been provisioned.", OrderIndex: 9},
}

var statusSteps = map[models.Status]string{
	models.StatusSubmitted:                  StepRequestSubmission,
	models.StatusContactConfirmationPending: StepRequestReview,
	models.StatusContactConfirmed:           StepContactConfirmation,
	models.StatusNameRevisionRequired:       StepContactConfirmation,
	models.StatusProposalRequired:           StepProposalSubmission,
	models.StatusProposalSubmitted:          StepProposalSubmission,
	models.StatusProposalRejected:           StepProposalSubmission,
	models.StatusProposalApproved:           StepProposalApproval,
	models.StatusDefenseScheduleProposed:    StepDefenseScheduling,
	models.StatusDefenseScheduleRejected:    StepDefenseScheduling,
	models.StatusDefenseScheduleApproved:    StepDefense,
	models.StatusDefenseCompleted:           StepFinalFormSubmission,
	models.StatusFinalFormSubmitted:         StepFinalFormSubmission,
	models.StatusApproved:                   StepClubEstablished,
}

var byCode map[string]models.WorkflowStep

func init() {
	if err := validate(steps); err != nil {
		panic(err)
	}

	byCode = make(map[string]models.WorkflowStep, len(steps))
	for _, step := range steps {
		byCode[step.Code] = step
	}
}

func validate(list []models.WorkflowStep) error {
	seen := make(map[string]bool, len(list))

	for i, step := range list {
		if seen[step.Code] {
			return fmt.Errorf("catalog: duplicate step code %s", step.Code)
		}

		seen[step.Code] = true

		if i > 0 && step.OrderIndex <= list[i-1].OrderIndex {
			return fmt.Errorf("catalog: order index of %s must be greater than %d", step.Code, list[i-1].OrderIndex)
		}
	}

	return nil
}

// Steps returns a copy of the catalog ordered by OrderIndex.
func Steps() []models.WorkflowStep {
	out := make([]models.WorkflowStep, len(steps))
	copy(out, steps)

	return out
}

// ByCode looks up a step by its code.
func ByCode(code string) (models.WorkflowStep, bool) {
	step, ok := byCode[code]

	return step, ok
}

// ForStatus returns the step a status belongs to. Terminal rejections have no
// step of their own and report false.
func ForStatus(status models.Status) (models.WorkflowStep, bool) {
	code, ok := statusSteps[status]
	if !ok {
		return models.WorkflowStep{}, false
	}

	return ByCode(code)
}

// CurrentStep derives the progress step of a request. For a terminal
// rejection it is the furthest step recorded in history, so progress never
// falls back to the first step.
func CurrentStep(status models.Status, history []*models.WorkflowHistoryEntry) models.WorkflowStep {
	if step, ok := ForStatus(status); ok {
		return step
	}

	current := steps[0]

	for _, entry := range history {
		step, ok := ByCode(entry.StepCode)
		if ok && step.OrderIndex > current.OrderIndex {
			current = step
		}
	}

	return current
}

// Progress summarises where a request stands.
type Progress struct {
	Current models.WorkflowStep   `json:"current"`
	Total   int                   `json:"total"`
	Steps   []models.WorkflowStep `json:"steps"`
}

// ProgressOf builds a Progress for a request with the given history.
func ProgressOf(status models.Status, history []*models.WorkflowHistoryEntry) Progress {
	return Progress{
		Current: CurrentStep(status, history),
		Total:   len(steps),
		Steps:   Steps(),
	}
}
