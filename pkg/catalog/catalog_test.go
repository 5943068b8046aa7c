package catalog

import (
	"testing"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteps_OrderIsStrictlyIncreasing(t *testing.T) {
	list := Steps()
	require.NotEmpty(t, list)

	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i].OrderIndex, list[i-1].OrderIndex, list[i].Code)
	}
}

func TestSteps_ReturnsCopy(t *testing.T) {
	list := Steps()
	list[0].Name = "mutated"

	step, ok := ByCode(StepRequestSubmission)
	require.True(t, ok)
	assert.Equal(t, "Request submission", step.Name)
}

func TestValidate_RejectsDuplicatesAndDisorder(t *testing.T) {
	err := validate([]models.WorkflowStep{{Code: "A", OrderIndex: 1}, {Code: "A", OrderIndex: 2}})
	assert.Error(t, err)

	err = validate([]models.WorkflowStep{{Code: "A", OrderIndex: 2}, {Code: "B", OrderIndex: 2}})
	assert.Error(t, err)
}

func TestForStatus_CoversEveryNonRejectedStatus(t *testing.T) {
	for _, status := range models.Statuses() {
		_, ok := ForStatus(status)
		if status.Rejected() {
			assert.False(t, ok, status)

			continue
		}

		assert.True(t, ok, status)
	}
}

func TestCurrentStep(t *testing.T) {
	history := []*models.WorkflowHistoryEntry{
		{StepCode: StepRequestReview},
		{StepCode: StepContactConfirmation},
		{StepCode: StepProposalSubmission},
		{StepCode: StepProposalApproval},
		{StepCode: StepDefenseScheduling},
		{StepCode: StepDefense},
	}

	tests := []struct {
		name    string
		status  models.Status
		history []*models.WorkflowHistoryEntry
		want    int
	}{
		{"forward status uses its own step", models.StatusProposalSubmitted, nil, 4},
		{"approved is the last step", models.StatusApproved, history, 9},
		{"rejected keeps furthest step reached", models.StatusRejected, history, 7},
		{"contact rejected after review", models.StatusContactRejected, history[:1], 2},
		{"rejected without history stays at first step", models.StatusContactRejected, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentStep(tt.status, tt.history).OrderIndex)
		})
	}
}

func TestProgressOf(t *testing.T) {
	progress := ProgressOf(models.StatusDefenseCompleted, nil)

	assert.Equal(t, StepFinalFormSubmission, progress.Current.Code)
	assert.Equal(t, 9, progress.Total)
	assert.Len(t, progress.Steps, 9)
}
