package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTopic indicates a topic string that is not kind:value.
var ErrInvalidTopic = errors.New("invalid topic")

// TopicKind is the addressing scope of a notification topic.
type TopicKind string

const (
	// TopicUser addresses exactly one actor.
	TopicUser TopicKind = "user"
	// TopicRole addresses every connected actor with a global role.
	TopicRole TopicKind = "role"
	// TopicGroup addresses privileged members of one group.
	TopicGroup TopicKind = "group"
)

// Topic is a notification delivery scope such as "user:42" or "role:STAFF".
type Topic string

func UserTopic(actorID string) Topic {
	return Topic(string(TopicUser) + ":" + actorID)
}

func RoleTopic(role GlobalRole) Topic {
	return Topic(string(TopicRole) + ":" + string(role))
}

func GroupTopic(groupID string) Topic {
	return Topic(string(TopicGroup) + ":" + groupID)
}

// ParseTopic splits and validates a topic.
func ParseTopic(raw string) (Topic, TopicKind, string, error) {
	kind, value, ok := strings.Cut(strings.TrimSpace(raw), ":")
	kind = strings.ToLower(kind)

	if !ok || value == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidTopic, raw)
	}

	switch TopicKind(kind) {
	case TopicUser, TopicGroup:
	case TopicRole:
		value = strings.ToUpper(value)
		if !GlobalRole(value).Valid() {
			return "", "", "", fmt.Errorf("%w: unknown role %q", ErrInvalidTopic, value)
		}
	default:
		return "", "", "", fmt.Errorf("%w: unknown kind %q", ErrInvalidTopic, kind)
	}

	return Topic(kind + ":" + value), TopicKind(kind), value, nil
}

// NotificationPayload is the hint carried by a notification. Clients must
// re-fetch instead of trusting it.
type NotificationPayload struct {
	RequestID string `json:"requestId"`
	ClubName  string `json:"clubName"`
	ActorName string `json:"actorName"`
	Message   string `json:"message"`
	Status    Status `json:"status,omitempty"`
	Version   int64  `json:"version,omitempty"`
	ClubID    string `json:"clubId,omitempty"`
}

// NotificationMessage is one message delivered on one topic.
type NotificationMessage struct {
	Topic      Topic               `json:"topic"`
	DomainTag  string              `json:"domainTag"`
	Action     string              `json:"action"`
	Payload    NotificationPayload `json:"payload"`
	OccurredAt time.Time           `json:"occurredAt"`
}
