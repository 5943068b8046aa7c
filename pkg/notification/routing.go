package notification

import (
	"fmt"
	"time"

	"github.com/dukex/clubflow/pkg/events"
	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/workflow"
)

// Message actions that are not transition names.
const (
	ActionRequestSubmitted        = "REQUEST_SUBMITTED"
	ActionProposalSubmitted       = "PROPOSAL_SUBMITTED"
	ActionDefenseScheduleProposed = "DEFENSE_SCHEDULE_PROPOSED"
	ActionFinalFormSubmitted      = "FINAL_FORM_SUBMITTED"
	ActionNameRevisionSubmitted   = "NAME_REVISION_SUBMITTED"
	ActionDefenseDue              = "DEFENSE_DUE"
)

// requesterActions maps the transitions performed by the requester to the
// artifact-creation action announced to reviewers.
var requesterActions = map[workflow.Action]string{
	workflow.ActionSubmitProposal:         ActionProposalSubmitted,
	workflow.ActionProposeDefenseSchedule: ActionDefenseScheduleProposed,
	workflow.ActionSubmitFinalForm:        ActionFinalFormSubmitted,
	workflow.ActionResubmitName:           ActionNameRevisionSubmitted,
}

var labels = map[string]string{
	ActionRequestSubmitted:                        "New club request",
	ActionProposalSubmitted:                       "Proposal submitted",
	ActionDefenseScheduleProposed:                 "Defense schedule proposed",
	ActionFinalFormSubmitted:                      "Final form submitted",
	ActionNameRevisionSubmitted:                   "Club name revised",
	ActionDefenseDue:                              "Defense outcome due",
	string(workflow.ActionReceive):                "Request received for review",
	string(workflow.ActionConfirmContact):         "Contact confirmed",
	string(workflow.ActionRejectContact):          "Request rejected at contact review",
	string(workflow.ActionRequestNameRevision):    "Club name revision requested",
	string(workflow.ActionRequestProposal):        "Proposal requested",
	string(workflow.ActionApproveProposal):        "Proposal approved",
	string(workflow.ActionRejectProposal):         "Proposal rejected",
	string(workflow.ActionApproveDefenseSchedule): "Defense schedule approved",
	string(workflow.ActionRejectDefenseSchedule):  "Defense schedule rejected",
	string(workflow.ActionCompleteDefense):        "Defense completed",
	string(workflow.ActionApproveFinalForm):       "Club established",
}

// Route is one (topic, action) pair an event resolves to.
type Route struct {
	Topic  models.Topic
	Action string
}

// Routes resolves the topics of an event. Duplicate topics are collapsed.
func Routes(event any) []Route {
	switch e := event.(type) {
	case events.RequestSubmitted:
		return Routes(&e)
	case events.TransitionCommitted:
		return Routes(&e)
	case events.DefenseDue:
		return Routes(&e)
	case *events.RequestSubmitted:
		if e.Request == nil {
			return nil
		}

		return dedupe(ActionRequestSubmitted,
			models.RoleTopic(models.GlobalRoleStaff),
			models.UserTopic(e.Request.RequesterID))
	case *events.TransitionCommitted:
		if e.Request == nil {
			return nil
		}

		return transitionRoutes(e)
	case *events.DefenseDue:
		if e.Request == nil {
			return nil
		}

		if e.Request.AssignedReviewerID != "" {
			return dedupe(ActionDefenseDue, models.UserTopic(e.Request.AssignedReviewerID))
		}

		return dedupe(ActionDefenseDue, models.RoleTopic(models.GlobalRoleStaff))
	default:
		return nil
	}
}

func transitionRoutes(e *events.TransitionCommitted) []Route {
	request := e.Request

	if action, ok := requesterActions[workflow.Action(e.Action)]; ok {
		topics := make([]models.Topic, 0, 2)
		if request.AssignedReviewerID != "" {
			topics = append(topics, models.UserTopic(request.AssignedReviewerID))
		}

		topics = append(topics, models.RoleTopic(models.GlobalRoleStaff))

		return dedupe(action, topics...)
	}

	topics := []models.Topic{
		models.UserTopic(request.RequesterID),
		models.RoleTopic(models.GlobalRoleStaff),
	}

	if workflow.Action(e.Action) == workflow.ActionApproveFinalForm && request.ClubID != "" {
		topics = append(topics, models.GroupTopic(request.ClubID))
	}

	return dedupe(e.Action, topics...)
}

func dedupe(action string, topics ...models.Topic) []Route {
	seen := make(map[models.Topic]bool, len(topics))
	routes := make([]Route, 0, len(topics))

	for _, topic := range topics {
		if seen[topic] {
			continue
		}

		seen[topic] = true
		routes = append(routes, Route{Topic: topic, Action: action})
	}

	return routes
}

// Messages builds one message per resolved topic.
func Messages(event any) []models.NotificationMessage {
	routes := Routes(event)
	if len(routes) == 0 {
		return nil
	}

	payload, occurredAt := payloadOf(event)
	messages := make([]models.NotificationMessage, 0, len(routes))

	for _, route := range routes {
		p := payload
		p.Message = describe(route.Action, p.ClubName, noteOf(event))

		messages = append(messages, models.NotificationMessage{
			Topic:      route.Topic,
			DomainTag:  DomainTag,
			Action:     route.Action,
			Payload:    p,
			OccurredAt: occurredAt,
		})
	}

	return messages
}

func payloadOf(event any) (models.NotificationPayload, time.Time) {
	var (
		base    events.BaseEvent
		request *models.EstablishmentRequest
	)

	switch e := event.(type) {
	case events.RequestSubmitted:
		base, request = e.BaseEvent, e.Request
	case *events.RequestSubmitted:
		base, request = e.BaseEvent, e.Request
	case events.TransitionCommitted:
		base, request = e.BaseEvent, e.Request
	case *events.TransitionCommitted:
		base, request = e.BaseEvent, e.Request
	case events.DefenseDue:
		base, request = e.BaseEvent, e.Request
	case *events.DefenseDue:
		base, request = e.BaseEvent, e.Request
	}

	payload := models.NotificationPayload{
		RequestID: base.RequestID,
		ActorName: base.Actor.Name,
	}

	if request != nil {
		payload.ClubName = request.ClubName
		payload.Status = request.Status
		payload.Version = request.Version
		payload.ClubID = request.ClubID
	}

	return payload, base.Timestamp
}

func noteOf(event any) string {
	switch e := event.(type) {
	case events.TransitionCommitted:
		return e.Note
	case *events.TransitionCommitted:
		return e.Note
	default:
		return ""
	}
}

func describe(action, clubName, note string) string {
	label, ok := labels[action]
	if !ok {
		label = action
	}

	message := fmt.Sprintf("%s: %s", label, clubName)
	if note != "" {
		message += " (" + note + ")"
	}

	return message
}
