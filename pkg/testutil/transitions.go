package testutil

import (
	"time"

	"github.com/dukex/clubflow/pkg/catalog"
	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
	"github.com/google/uuid"
)

// CreateTestTransition builds a transition moving request from its current
// status and version to next, recorded as action by actorID.
func CreateTestTransition(request *models.EstablishmentRequest, action string, next models.Status, actorID string, at time.Time) *persistence.Transition {
	step, ok := catalog.ForStatus(next)
	if !ok {
		step = catalog.CurrentStep(request.Status, nil)
	}

	return &persistence.Transition{
		RequestID:       request.ID,
		ExpectedStatus:  request.Status,
		ExpectedVersion: request.Version,
		NextStatus:      next,
		CommittedAt:     at,
		History: &models.WorkflowHistoryEntry{
			ID:         uuid.New().String(),
			RequestID:  request.ID,
			StepCode:   step.Code,
			Action:     action,
			FromStatus: request.Status,
			ToStatus:   next,
			ActorID:    actorID,
			ActionDate: at,
		},
	}
}
