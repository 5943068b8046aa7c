package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukex/clubflow/pkg/models"
)

// Transition is an engine-approved state change ready to be committed.
type Transition struct {
	RequestID       string
	ExpectedStatus  models.Status
	ExpectedVersion int64
	NextStatus      models.Status
	History         *models.WorkflowHistoryEntry
	CommittedAt     time.Time

	// Optional effects committed with the status change.
	Artifact           *models.Artifact
	ClubName           string
	AssignedReviewerID string
	Club               *models.Club
}

// Validate checks the transition is internally consistent before a store
// attempts to commit it.
func (t *Transition) Validate() error {
	switch {
	case t == nil:
		return errors.New("transition is nil")
	case t.RequestID == "":
		return errors.New("transition request id is required")
	case !t.NextStatus.Valid():
		return fmt.Errorf("transition next status %q is invalid", t.NextStatus)
	case t.History == nil:
		return errors.New("transition history entry is required")
	case t.History.RequestID != t.RequestID:
		return errors.New("history entry belongs to another request")
	case t.Artifact != nil && t.Artifact.RequestID != t.RequestID:
		return errors.New("artifact belongs to another request")
	}

	return nil
}

// Matches reports whether the stored request is still in the expected state.
func (t *Transition) Matches(current *models.EstablishmentRequest) bool {
	return current.Status == t.ExpectedStatus && current.Version == t.ExpectedVersion
}

// Apply mutates request in place as the commit would.
func (t *Transition) Apply(request *models.EstablishmentRequest) {
	request.Status = t.NextStatus
	request.Version++
	request.UpdatedAt = t.CommittedAt

	if t.ClubName != "" {
		request.ClubName = t.ClubName
	}

	if t.AssignedReviewerID != "" {
		request.AssignedReviewerID = t.AssignedReviewerID
	}

	if t.Club != nil {
		request.ClubID = t.Club.ID
	}
}
