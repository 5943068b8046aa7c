package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/clubflow/pkg/catalog"
	"github.com/dukex/clubflow/pkg/eventbus"
	"github.com/dukex/clubflow/pkg/events"
	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/otelhelper"
	"github.com/dukex/clubflow/pkg/persistence"
	"github.com/dukex/clubflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Establishment runs the club establishment lifecycle. Every status change
// goes through workflow.Decide and is committed with
// RequestRepository.ApplyTransition.
type Establishment struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	clock       clockwork.Clock
	tracer      trace.Tracer
	logger      *slog.Logger
	validate    *validator.Validate
}

// Option configures an Establishment service.
type Option func(*Establishment)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Establishment) {
		e.clock = clock
	}
}

// WithTracer sets the tracer used for action spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Establishment) {
		e.tracer = tracer
	}
}

// NewEstablishment creates a new establishment service. publisher may be nil
// when no notification fan-out is wanted.
func NewEstablishment(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger, opts ...Option) *Establishment {
	e := &Establishment{
		persistence: persistence,
		publisher:   publisher,
		clock:       clockwork.NewRealClock(),
		tracer:      otelhelper.Tracer("clubflow/services"),
		logger:      logger.With("module", "establishment_service"),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// HealthCheck checks the health of the persistence layer.
func (e *Establishment) HealthCheck(ctx context.Context) (string, bool) {
	if e.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := e.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// SubmitInput is the data a student provides when requesting a new club.
type SubmitInput struct {
	ClubName     string `json:"club_name"     validate:"required,min=3,max=100"`
	ClubCode     string `json:"club_code"     validate:"required,max=32"`
	Description  string `json:"description"   validate:"max=2000"`
	Category     string `json:"category"      validate:"max=100"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
	ContactPhone string `json:"contact_phone" validate:"max=32"`
}

// Submit stores a new request in SUBMITTED with the actor as requester.
func (e *Establishment) Submit(ctx context.Context, actor models.ActorContext, input SubmitInput) (*models.EstablishmentRequest, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}

	input.ClubName = strings.TrimSpace(input.ClubName)
	input.ClubCode = strings.TrimSpace(input.ClubCode)

	err := e.validate.Struct(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	now := e.clock.Now().UTC()
	request := &models.EstablishmentRequest{
		ID:            uuid.New().String(),
		ClubName:      input.ClubName,
		ClubCode:      input.ClubCode,
		Description:   input.Description,
		Category:      input.Category,
		ContactEmail:  input.ContactEmail,
		ContactPhone:  input.ContactPhone,
		RequesterID:   actor.ID,
		RequesterName: actor.DisplayName(),
		Status:        models.StatusSubmitted,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = e.persistence.RequestRepository().Create(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	e.logger.InfoContext(ctx, "Request submitted", "request_id", request.ID, "actor_id", actor.ID)

	e.publish(ctx, request.ID, events.RequestSubmitted{
		BaseEvent: events.NewBaseEvent(events.RequestSubmittedEvent, request.ID, events.ActorOf(actor), now),
		Request:   request.Clone(),
	})

	return request, nil
}

// Get returns the committed snapshot of a request.
func (e *Establishment) Get(ctx context.Context, id string) (*models.EstablishmentRequest, error) {
	return e.persistence.RequestRepository().GetByID(ctx, id)
}

// RequestDetail is a request snapshot with its progress and the actions the
// caller may take now.
type RequestDetail struct {
	Request        *models.EstablishmentRequest `json:"request"`
	CurrentStep    models.WorkflowStep          `json:"current_step"`
	Terminal       bool                         `json:"terminal"`
	AllowedActions []workflow.Action            `json:"allowed_actions"`
}

// Detail loads a request together with its derived progress.
func (e *Establishment) Detail(ctx context.Context, actor models.ActorContext, id string) (*RequestDetail, error) {
	repo := e.persistence.RequestRepository()

	request, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := repo.History(ctx, id)
	if err != nil {
		return nil, err
	}

	return &RequestDetail{
		Request:        request,
		CurrentStep:    catalog.CurrentStep(request.Status, history),
		Terminal:       workflow.IsTerminal(request.Status),
		AllowedActions: workflow.Allowed(request.Status, workflow.RolesOf(actor, request)),
	}, nil
}

// ListRequest contains options for listing requests.
type ListRequest struct {
	Limit       int `validate:"min=0,max=100"`
	Offset      int `validate:"min=0"`
	Status      *models.Status
	RequesterID string
	ReviewerID  string
}

// List returns one page of requests. Students only ever see their own.
func (e *Establishment) List(ctx context.Context, actor models.ActorContext, req ListRequest) (*persistence.RequestListResult, error) {
	err := e.validate.Struct(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	if req.Status != nil && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, *req.Status)
	}

	if !actor.IsStaff() {
		req.RequesterID = actor.ID
	}

	result, err := e.persistence.RequestRepository().List(ctx, persistence.ListRequestsOptions{
		Limit:       req.Limit,
		Offset:      req.Offset,
		Status:      req.Status,
		RequesterID: req.RequesterID,
		ReviewerID:  req.ReviewerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	return result, nil
}

// History returns the audit trail of a request, oldest first.
func (e *Establishment) History(ctx context.Context, id string) ([]*models.WorkflowHistoryEntry, error) {
	return e.persistence.RequestRepository().History(ctx, id)
}

// Artifacts returns every artifact version attached to a request.
func (e *Establishment) Artifacts(ctx context.Context, id string) (*models.ArtifactSet, error) {
	return e.persistence.RequestRepository().Artifacts(ctx, id)
}

// Progress derives the current step of a request from its status and history.
func (e *Establishment) Progress(ctx context.Context, id string) (catalog.Progress, error) {
	repo := e.persistence.RequestRepository()

	request, err := repo.GetByID(ctx, id)
	if err != nil {
		return catalog.Progress{}, err
	}

	history, err := repo.History(ctx, id)
	if err != nil {
		return catalog.Progress{}, err
	}

	return catalog.ProgressOf(request.Status, history), nil
}

// Club returns a provisioned club.
func (e *Establishment) Club(ctx context.Context, id string) (*models.Club, error) {
	return e.persistence.ClubRepository().GetByID(ctx, id)
}

// DueDefense is an approved defense whose window has ended without an outcome.
type DueDefense struct {
	Request  *models.EstablishmentRequest
	Schedule *models.Artifact
}

// DueDefenses lists DEFENSE_SCHEDULE_APPROVED requests whose latest schedule
// has ended by now.
func (e *Establishment) DueDefenses(ctx context.Context) ([]DueDefense, error) {
	repo := e.persistence.RequestRepository()
	status := models.StatusDefenseScheduleApproved
	now := e.clock.Now()
	due := make([]DueDefense, 0)

	for offset := 0; ; {
		page, err := repo.List(ctx, persistence.ListRequestsOptions{Limit: 100, Offset: offset, Status: &status})
		if err != nil {
			return nil, fmt.Errorf("failed to list approved defenses: %w", err)
		}

		for _, request := range page.Requests {
			artifacts, err := repo.Artifacts(ctx, request.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to load artifacts of %s: %w", request.ID, err)
			}

			schedule := artifacts.Latest(models.ArtifactDefenseSchedule)
			if schedule == nil || schedule.EndsAt == nil || now.Before(*schedule.EndsAt) {
				continue
			}

			due = append(due, DueDefense{Request: request, Schedule: schedule})
		}

		if !page.HasNextPage {
			return due, nil
		}

		offset += len(page.Requests)
	}
}

// publish hands an event to the bus. Failures are logged and never reach the
// caller: the transition is already committed.
func (e *Establishment) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, key, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"request_id", key,
			"error", err)
	}
}

func spanAttributes(requestID string, action workflow.Action, actor models.ActorContext) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(otelhelper.RequestIDKey, requestID),
		attribute.String(otelhelper.ActionKey, string(action)),
		attribute.String(otelhelper.ActorIDKey, actor.ID),
	}
}
