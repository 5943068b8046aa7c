// Package notification turns committed workflow events into topic-addressed
// messages and fans them out to live subscribers.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/clubflow/pkg/eventbus"
	"github.com/dukex/clubflow/pkg/events"
	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/subscription"
	"github.com/dukex/clubflow/pkg/workflow"
)

// DomainTag marks messages produced by the club establishment lifecycle.
const DomainTag = "club-establishment"

// Deliverer hands one message to every subscriber of its topic and grants
// group roles to live connections.
type Deliverer interface {
	Deliver(msg models.NotificationMessage) subscription.DeliveryReport
	Grant(actorID, groupID string, role models.GroupRole) int
}

// Hub resolves the topics of each domain event and delivers one message per topic.
type Hub struct {
	registry Deliverer
	logger   *slog.Logger
}

func NewHub(registry Deliverer, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		logger:   logger.With("module", "notification_hub"),
	}
}

// Attach registers the hub as handler of every domain event on the bus.
func (h *Hub) Attach(bus eventbus.EventSubscriber) error {
	for _, eventType := range []events.EventType{
		events.RequestSubmittedEvent,
		events.TransitionCommittedEvent,
		events.DefenseDueEvent,
	} {
		err := bus.Handle(eventType, h.handle)
		if err != nil {
			return fmt.Errorf("failed to handle %s: %w", eventType, err)
		}
	}

	return nil
}

// handle never fails: a message that cannot be delivered is only logged.
func (h *Hub) handle(ctx context.Context, event any) error {
	e, ok := event.(eventbus.Event)
	if !ok {
		h.logger.WarnContext(ctx, "Ignoring unexpected event", "event", fmt.Sprintf("%T", event))

		return nil
	}

	h.Notify(ctx, e)

	return nil
}

// Notify builds and delivers the messages for event. It returns the
// delivery reports for inspection; failures are logged, not returned.
func (h *Hub) Notify(ctx context.Context, event eventbus.Event) []subscription.DeliveryReport {
	h.openClubGroup(ctx, event)

	messages := Messages(event)
	reports := make([]subscription.DeliveryReport, 0, len(messages))

	for _, msg := range messages {
		report := h.registry.Deliver(msg)
		reports = append(reports, report)

		for _, failure := range report.Failures {
			h.logger.WarnContext(ctx, "Notification dropped",
				"topic", msg.Topic,
				"action", msg.Action,
				"request_id", msg.Payload.RequestID,
				"subscriber_id", failure.SubscriberID,
				"error", failure.Err)
		}
	}

	h.logger.DebugContext(ctx, "Notification fan-out finished",
		"event_type", event.GetType(),
		"messages", len(messages))

	return reports
}

// openClubGroup joins the president's live connections to the group of a
// club provisioned by event, so the approval reaches the new group.
func (h *Hub) openClubGroup(ctx context.Context, event eventbus.Event) {
	var e *events.TransitionCommitted

	switch v := event.(type) {
	case events.TransitionCommitted:
		e = &v
	case *events.TransitionCommitted:
		e = v
	default:
		return
	}

	if e.Request == nil || e.Request.ClubID == "" || workflow.Action(e.Action) != workflow.ActionApproveFinalForm {
		return
	}

	joined := h.registry.Grant(e.Request.RequesterID, e.Request.ClubID, models.GroupRolePresident)

	h.logger.DebugContext(ctx, "Club group opened",
		"club_id", e.Request.ClubID,
		"president_id", e.Request.RequesterID,
		"connections", joined)
}
