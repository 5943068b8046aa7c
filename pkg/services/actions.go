package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/clubflow/pkg/events"
	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/otelhelper"
	"github.com/dukex/clubflow/pkg/persistence"
	"github.com/dukex/clubflow/pkg/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ActionInput is one workflow action call. ExpectedStatus and
// ExpectedVersion, when set, must match the stored request or the call fails
// with ErrConcurrentModification before anything is decided. Without
// ExpectedStatus the action's only source status is assumed, when it has one.
type ActionInput struct {
	RequestID       string
	Action          workflow.Action
	ExpectedStatus  models.Status
	ExpectedVersion *int64

	Comment     string `validate:"max=2000"`
	Reason      string `validate:"max=2000"`
	Result      models.DefenseResult
	Feedback    string `validate:"max=2000"`
	ClubName    string `validate:"omitempty,min=3,max=100"`
	DocumentRef string `validate:"max=500"`
	StartsAt    *time.Time
	EndsAt      *time.Time
	Location    string `validate:"max=200"`
}

// Perform validates an action against the transition table and commits it.
// It returns the snapshot right after the commit.
func (e *Establishment) Perform(ctx context.Context, actor models.ActorContext, input ActionInput) (*models.EstablishmentRequest, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "establishment.perform", spanAttributes(input.RequestID, input.Action, actor)...)
	defer span.End()

	updated, transition, err := e.perform(ctx, actor, input)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.RequestIDKey, input.RequestID))
		e.logger.InfoContext(ctx, "Action rejected",
			"request_id", input.RequestID,
			"action", input.Action,
			"actor_id", actor.ID,
			"error", err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.NextStatusKey, string(updated.Status)))

	e.logger.InfoContext(ctx, "Action committed",
		"request_id", updated.ID,
		"action", input.Action,
		"from_status", transition.ExpectedStatus,
		"to_status", updated.Status,
		"version", updated.Version,
		"actor_id", actor.ID)

	e.publish(ctx, updated.ID, events.TransitionCommitted{
		BaseEvent:  events.NewBaseEvent(events.TransitionCommittedEvent, updated.ID, events.ActorOf(actor), transition.CommittedAt),
		Action:     string(input.Action),
		FromStatus: transition.ExpectedStatus,
		ToStatus:   updated.Status,
		StepCode:   transition.History.StepCode,
		Note:       transition.History.Comment,
		Request:    updated.Clone(),
	})

	return updated, nil
}

func (e *Establishment) perform(ctx context.Context, actor models.ActorContext, input ActionInput) (*models.EstablishmentRequest, *persistence.Transition, error) {
	op := string(input.Action)

	if actor.ID == "" {
		return nil, nil, newActionError(op, input.RequestID, "", ErrUnauthenticated)
	}

	repo := e.persistence.RequestRepository()

	request, err := repo.GetByID(ctx, input.RequestID)
	if err != nil {
		return nil, nil, newActionError(op, input.RequestID, "", err)
	}

	if input.ExpectedVersion != nil && *input.ExpectedVersion != request.Version {
		return nil, nil, newActionError(op, request.ID, request.Status, ErrConcurrentModification)
	}

	stale, err := e.isStale(ctx, request, input)
	if err != nil {
		return nil, nil, newActionError(op, request.ID, request.Status, err)
	}

	if stale {
		return nil, nil, newActionError(op, request.ID, request.Status, ErrConcurrentModification)
	}

	artifacts := models.NewArtifactSet()

	if workflow.ArtifactFor(input.Action) != "" || input.Action == workflow.ActionCompleteDefense {
		artifacts, err = repo.Artifacts(ctx, request.ID)
		if err != nil {
			return nil, nil, newActionError(op, request.ID, request.Status, err)
		}
	}

	now := e.clock.Now().UTC()
	payload := workflow.Payload{
		Comment:     input.Comment,
		Reason:      input.Reason,
		Result:      input.Result,
		Feedback:    input.Feedback,
		ClubName:    input.ClubName,
		DocumentRef: input.DocumentRef,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		Now:         now,
	}

	if schedule := artifacts.Latest(models.ArtifactDefenseSchedule); schedule != nil {
		payload.DefenseEndsAt = schedule.EndsAt
	}

	decision, err := workflow.Decide(request.Status, input.Action, workflow.RolesOf(actor, request), payload)
	if err != nil {
		return nil, nil, newActionError(op, request.ID, request.Status, err)
	}

	if err := e.validate.Struct(input); err != nil {
		return nil, nil, newActionError(op, request.ID, request.Status, fmt.Errorf("%w: %s", ErrValidationFailed, err.Error()))
	}

	transition := e.buildTransition(actor, request, artifacts, decision, payload, input)

	updated, err := repo.ApplyTransition(ctx, transition)
	if err != nil {
		return nil, nil, newActionError(op, request.ID, request.Status, err)
	}

	return updated, transition, nil
}

// isStale reports whether the caller acted on a status the request has
// already left. A named ExpectedStatus must match exactly. Otherwise the
// action's source status counts as stale only once history shows the request
// passed through it, so actions that were never possible stay invalid.
func (e *Establishment) isStale(ctx context.Context, request *models.EstablishmentRequest, input ActionInput) (bool, error) {
	if input.ExpectedStatus != "" {
		return input.ExpectedStatus != request.Status, nil
	}

	from, ok := workflow.SourceOf(input.Action)
	if !ok || from == request.Status {
		return false, nil
	}

	history, err := e.persistence.RequestRepository().History(ctx, request.ID)
	if err != nil {
		return false, err
	}

	for _, entry := range history {
		if entry.FromStatus == from {
			return true, nil
		}
	}

	return false, nil
}

func (e *Establishment) buildTransition(
	actor models.ActorContext,
	request *models.EstablishmentRequest,
	artifacts *models.ArtifactSet,
	decision workflow.Decision,
	payload workflow.Payload,
	input ActionInput,
) *persistence.Transition {
	// History dates never go backwards for one request, even if clocks drift.
	committedAt := payload.Now
	if committedAt.Before(request.UpdatedAt) {
		committedAt = request.UpdatedAt
	}

	entry := &models.WorkflowHistoryEntry{
		ID:         uuid.New().String(),
		RequestID:  request.ID,
		StepCode:   decision.StepCode,
		Action:     string(decision.Action),
		FromStatus: decision.From,
		ToStatus:   decision.Next,
		ActorID:    actor.ID,
		Comment:    payload.Note(),
		ActionDate: committedAt,
	}

	if decision.Action == workflow.ActionCompleteDefense {
		entry.Result = payload.Result
	}

	transition := &persistence.Transition{
		RequestID:       request.ID,
		ExpectedStatus:  request.Status,
		ExpectedVersion: request.Version,
		NextStatus:      decision.Next,
		History:         entry,
		CommittedAt:     committedAt,
	}

	switch decision.Action {
	case workflow.ActionReceive:
		transition.AssignedReviewerID = actor.ID
	case workflow.ActionResubmitName:
		transition.ClubName = strings.TrimSpace(input.ClubName)
	}

	if decision.Artifact != "" {
		transition.Artifact = &models.Artifact{
			ID:          uuid.New().String(),
			RequestID:   request.ID,
			Kind:        decision.Artifact,
			Version:     artifacts.NextVersion(decision.Artifact),
			DocumentRef: strings.TrimSpace(input.DocumentRef),
			Comment:     strings.TrimSpace(input.Comment),
			CreatedBy:   actor.ID,
			CreatedAt:   committedAt,
		}

		if decision.Artifact == models.ArtifactDefenseSchedule {
			transition.Artifact.StartsAt = input.StartsAt
			transition.Artifact.EndsAt = input.EndsAt
			transition.Artifact.Location = strings.TrimSpace(input.Location)
		}
	}

	if decision.Provision {
		transition.Club = &models.Club{
			ID:          uuid.New().String(),
			Name:        request.ClubName,
			Code:        request.ClubCode,
			Description: request.Description,
			Category:    request.Category,
			PresidentID: request.RequesterID,
			RequestID:   request.ID,
			CreatedAt:   committedAt,
		}
	}

	return transition
}

// Receive takes a submitted request into review and assigns the actor as reviewer.
func (e *Establishment) Receive(ctx context.Context, actor models.ActorContext, requestID string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionReceive})
}

func (e *Establishment) ConfirmContact(ctx context.Context, actor models.ActorContext, requestID string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionConfirmContact})
}

func (e *Establishment) RejectContact(ctx context.Context, actor models.ActorContext, requestID, reason string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionRejectContact, Reason: reason})
}

func (e *Establishment) RequestNameRevision(ctx context.Context, actor models.ActorContext, requestID, comment string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionRequestNameRevision, Comment: comment})
}

func (e *Establishment) ResubmitName(ctx context.Context, actor models.ActorContext, requestID, clubName string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionResubmitName, ClubName: clubName})
}

func (e *Establishment) RequestProposal(ctx context.Context, actor models.ActorContext, requestID, comment string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionRequestProposal, Comment: comment})
}

func (e *Establishment) SubmitProposal(ctx context.Context, actor models.ActorContext, requestID, documentRef, comment string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{
		RequestID:   requestID,
		Action:      workflow.ActionSubmitProposal,
		DocumentRef: documentRef,
		Comment:     comment,
	})
}

func (e *Establishment) ApproveProposal(ctx context.Context, actor models.ActorContext, requestID, comment string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionApproveProposal, Comment: comment})
}

func (e *Establishment) RejectProposal(ctx context.Context, actor models.ActorContext, requestID, reason string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionRejectProposal, Reason: reason})
}

// Schedule is a proposed defense window.
type Schedule struct {
	StartsAt time.Time
	EndsAt   time.Time
	Location string
}

func (e *Establishment) ProposeDefenseSchedule(ctx context.Context, actor models.ActorContext, requestID string, schedule Schedule) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{
		RequestID: requestID,
		Action:    workflow.ActionProposeDefenseSchedule,
		StartsAt:  &schedule.StartsAt,
		EndsAt:    &schedule.EndsAt,
		Location:  schedule.Location,
	})
}

func (e *Establishment) ApproveDefenseSchedule(ctx context.Context, actor models.ActorContext, requestID string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionApproveDefenseSchedule})
}

func (e *Establishment) RejectDefenseSchedule(ctx context.Context, actor models.ActorContext, requestID, reason string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionRejectDefenseSchedule, Reason: reason})
}

// CompleteDefense records the defense outcome once the approved window has ended.
func (e *Establishment) CompleteDefense(ctx context.Context, actor models.ActorContext, requestID string, result models.DefenseResult, feedback string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{
		RequestID: requestID,
		Action:    workflow.ActionCompleteDefense,
		Result:    result,
		Feedback:  feedback,
	})
}

func (e *Establishment) SubmitFinalForm(ctx context.Context, actor models.ActorContext, requestID, documentRef string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionSubmitFinalForm, DocumentRef: documentRef})
}

// ApproveFinalForm approves the request and provisions the club.
func (e *Establishment) ApproveFinalForm(ctx context.Context, actor models.ActorContext, requestID string) (*models.EstablishmentRequest, error) {
	return e.Perform(ctx, actor, ActionInput{RequestID: requestID, Action: workflow.ActionApproveFinalForm})
}
