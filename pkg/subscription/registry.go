// Package subscription tracks which live connections listen to which
// notification topics and delivers messages to them without blocking.
package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/google/uuid"
)

var (
	// ErrUnknownSubscriber indicates the subscriber was never registered or was removed.
	ErrUnknownSubscriber = errors.New("unknown subscriber")

	// ErrTopicForbidden indicates the actor may not listen to the topic.
	ErrTopicForbidden = errors.New("topic forbidden")

	// ErrOutboxFull indicates a message was dropped because the subscriber is not keeping up.
	ErrOutboxFull = errors.New("subscriber outbox full")
)

const DefaultOutboxSize = 64

// Subscriber is one live connection. Messages are read from Outbox, which is
// closed once the subscriber is removed.
type Subscriber struct {
	ID     string
	Actor  models.ActorContext
	outbox chan models.NotificationMessage
	topics map[models.Topic]struct{}
}

// Outbox returns the channel messages are delivered on.
func (s *Subscriber) Outbox() <-chan models.NotificationMessage {
	return s.outbox
}

// DeliveryFailure records one dropped message.
type DeliveryFailure struct {
	SubscriberID string
	Err          error
}

// DeliveryReport summarises a Deliver call.
type DeliveryReport struct {
	Topic     models.Topic
	Delivered int
	Failures  []DeliveryFailure
}

// Registry maps topics to subscribers.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	topics      map[models.Topic]map[string]*Subscriber
	outboxSize  int
	logger      *slog.Logger
}

// NewRegistry creates a registry whose subscribers buffer up to outboxSize messages.
func NewRegistry(outboxSize int, logger *slog.Logger) *Registry {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}

	return &Registry{
		subscribers: make(map[string]*Subscriber),
		topics:      make(map[models.Topic]map[string]*Subscriber),
		outboxSize:  outboxSize,
		logger:      logger.With("module", "subscription_registry"),
	}
}

// Register adds a live connection for actor.
func (r *Registry) Register(actor models.ActorContext) *Subscriber {
	subscriber := &Subscriber{
		ID:     uuid.New().String(),
		Actor:  actor,
		outbox: make(chan models.NotificationMessage, r.outboxSize),
		topics: make(map[models.Topic]struct{}),
	}

	r.mu.Lock()
	r.subscribers[subscriber.ID] = subscriber
	r.mu.Unlock()

	return subscriber
}

// Authorize checks whether actor may listen to topic: its own user queue,
// its own global role, or groups where it holds a privileged role.
func Authorize(actor models.ActorContext, topic models.Topic) (models.Topic, error) {
	normalized, kind, value, err := models.ParseTopic(string(topic))
	if err != nil {
		return "", err
	}

	allowed := false

	switch kind {
	case models.TopicUser:
		allowed = actor.ID != "" && value == actor.ID
	case models.TopicRole:
		allowed = models.GlobalRole(value) == actor.GlobalRole
	case models.TopicGroup:
		allowed = actor.PrivilegedIn(value)
	}

	if !allowed {
		return "", fmt.Errorf("%w: %s", ErrTopicForbidden, normalized)
	}

	return normalized, nil
}

// Subscribe adds topic to the subscriber. Subscribing twice is a no-op.
func (r *Registry) Subscribe(subscriberID string, topic models.Topic) (models.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscriber, ok := r.subscribers[subscriberID]
	if !ok {
		return "", ErrUnknownSubscriber
	}

	normalized, err := Authorize(subscriber.Actor, topic)
	if err != nil {
		return "", err
	}

	subscriber.topics[normalized] = struct{}{}

	members, ok := r.topics[normalized]
	if !ok {
		members = make(map[string]*Subscriber)
		r.topics[normalized] = members
	}

	members[subscriberID] = subscriber

	return normalized, nil
}

// Grant gives every live connection of actorID a role in groupID and, when
// the role is privileged, joins them to the group topic. It returns how many
// connections joined.
func (r *Registry) Grant(actorID, groupID string, role models.GroupRole) int {
	topic := models.GroupTopic(groupID)

	r.mu.Lock()
	defer r.mu.Unlock()

	joined := 0

	for id, subscriber := range r.subscribers {
		if subscriber.Actor.ID != actorID {
			continue
		}

		roles := make(map[string]models.GroupRole, len(subscriber.Actor.GroupRoles)+1)
		for group, existing := range subscriber.Actor.GroupRoles {
			roles[group] = existing
		}

		roles[groupID] = role
		subscriber.Actor.GroupRoles = roles

		if !role.Privileged() {
			continue
		}

		subscriber.topics[topic] = struct{}{}

		members, ok := r.topics[topic]
		if !ok {
			members = make(map[string]*Subscriber)
			r.topics[topic] = members
		}

		members[id] = subscriber
		joined++
	}

	return joined
}

// Unsubscribe removes topic from the subscriber. Unknown subscribers and
// topics never subscribed are ignored.
func (r *Registry) Unsubscribe(subscriberID string, topic models.Topic) {
	if normalized, _, _, err := models.ParseTopic(string(topic)); err == nil {
		topic = normalized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subscriber, ok := r.subscribers[subscriberID]
	if !ok {
		return
	}

	delete(subscriber.topics, topic)
	r.detach(subscriberID, topic)
}

// Remove drops the subscriber from every topic and closes its outbox.
func (r *Registry) Remove(subscriberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscriber, ok := r.subscribers[subscriberID]
	if !ok {
		return
	}

	for topic := range subscriber.topics {
		r.detach(subscriberID, topic)
	}

	delete(r.subscribers, subscriberID)
	close(subscriber.outbox)
}

func (r *Registry) detach(subscriberID string, topic models.Topic) {
	members, ok := r.topics[topic]
	if !ok {
		return
	}

	delete(members, subscriberID)

	if len(members) == 0 {
		delete(r.topics, topic)
	}
}

// Topics lists the topics a subscriber listens to.
func (r *Registry) Topics(subscriberID string) []models.Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subscriber, ok := r.subscribers[subscriberID]
	if !ok {
		return nil
	}

	topics := make([]models.Topic, 0, len(subscriber.topics))
	for topic := range subscriber.topics {
		topics = append(topics, topic)
	}

	return topics
}

// Count returns the number of subscribers listening to topic.
func (r *Registry) Count(topic models.Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.topics[topic])
}

// Deliver offers msg to every subscriber of msg.Topic. It never waits: a
// subscriber whose outbox is full misses the message.
func (r *Registry) Deliver(msg models.NotificationMessage) DeliveryReport {
	report := DeliveryReport{Topic: msg.Topic}

	// The read lock keeps Remove from closing an outbox mid-send.
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, subscriber := range r.topics[msg.Topic] {
		select {
		case subscriber.outbox <- msg:
			report.Delivered++
		default:
			report.Failures = append(report.Failures, DeliveryFailure{SubscriberID: id, Err: ErrOutboxFull})
			r.logger.Warn("Dropping notification for slow subscriber",
				"subscriber_id", id,
				"topic", msg.Topic,
				"action", msg.Action)
		}
	}

	return report
}

// Len returns the number of live subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subscribers)
}
