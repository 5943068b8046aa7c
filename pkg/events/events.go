// Package events defines the domain events emitted by the establishment workflow.
package events

import (
	"time"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic is the bus topic every domain event is published on.
const Topic = "clubflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RequestSubmittedEvent    EventType = "request.submitted"
	TransitionCommittedEvent EventType = "request.transition.committed"
	DefenseDueEvent          EventType = "request.defense.due"
)

// Actor identifies who caused an event.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ActorOf copies the identifying fields of an actor context.
func ActorOf(actor models.ActorContext) Actor {
	return Actor{ID: actor.ID, Name: actor.DisplayName()}
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	Actor     Actor     `json:"actor"`
}

// NewBaseEvent creates a base event with a fresh ID.
func NewBaseEvent(eventType EventType, requestID string, actor Actor, at time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: at,
		RequestID: requestID,
		Actor:     actor,
	}
}

// RequestSubmitted is emitted once a new request has been stored.
type RequestSubmitted struct {
	BaseEvent

	Request *models.EstablishmentRequest `json:"request"`
}

func (e RequestSubmitted) GetType() EventType {
	return RequestSubmittedEvent
}

// TransitionCommitted is emitted after a transition has been committed.
// Request is the snapshot right after the commit.
type TransitionCommitted struct {
	BaseEvent

	Action     string                       `json:"action"`
	FromStatus models.Status                `json:"from_status"`
	ToStatus   models.Status                `json:"to_status"`
	StepCode   string                       `json:"step_code"`
	Note       string                       `json:"note,omitempty"`
	Request    *models.EstablishmentRequest `json:"request"`
}

func (e TransitionCommitted) GetType() EventType {
	return TransitionCommittedEvent
}

// DefenseDue is emitted when an approved defense window has ended and the
// outcome still has to be recorded.
type DefenseDue struct {
	BaseEvent

	ScheduleVersion int                          `json:"schedule_version"`
	EndsAt          time.Time                    `json:"ends_at"`
	Request         *models.EstablishmentRequest `json:"request"`
}

func (e DefenseDue) GetType() EventType {
	return DefenseDueEvent
}
