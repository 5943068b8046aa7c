package kafka_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/clubflow/pkg/channels/kafka"
	"github.com/dukex/clubflow/pkg/eventbus"
	"github.com/dukex/clubflow/pkg/events"
	"github.com/dukex/clubflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafka(t *testing.T) []string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}

	ctx := context.Background()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("clubflow-test"))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, testcontainers.TerminateContainer(container))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0

	admin, err := sarama.NewClusterAdmin(brokers, config)
	require.NoError(t, err)

	defer func() { _ = admin.Close() }()

	require.NoError(t, admin.CreateTopic(events.Topic, &sarama.TopicDetail{NumPartitions: 1, ReplicationFactor: 1}, false))

	return brokers
}

func TestCreateChannel_DeliversDomainEvents(t *testing.T) {
	brokers := setupKafka(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "clubflow-test", brokers)
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)

	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	received := make(chan *events.RequestSubmitted, 16)
	require.NoError(t, bus.Handle(events.RequestSubmittedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.RequestSubmitted)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	request := testutil.CreateTestRequest()
	event := events.RequestSubmitted{
		BaseEvent: events.NewBaseEvent(events.RequestSubmittedEvent, request.ID, events.Actor{ID: request.RequesterID}, time.Now()),
		Request:   request,
	}

	// The consumer starts at the newest offset, so publish until it has joined.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		require.NoError(t, bus.Publish(ctx, request.ID, event))

		select {
		case got := <-received:
			assert.Equal(t, request.ID, got.Request.ID)

			return
		case <-ticker.C:
		case <-ctx.Done():
			t.Fatal("event was not delivered through kafka")
		}
	}
}
