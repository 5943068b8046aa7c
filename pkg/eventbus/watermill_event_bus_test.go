package eventbus_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/clubflow/pkg/channels/gochannel"
	"github.com/dukex/clubflow/pkg/eventbus"
	"github.com/dukex/clubflow/pkg/events"
	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger), 10)
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)
	received := make(chan *events.TransitionCommitted, 1)

	require.NoError(t, bus.Handle(events.TransitionCommittedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.TransitionCommitted)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	request := testutil.CreateTestRequest(testutil.WithStatus(models.StatusContactConfirmationPending))
	event := events.TransitionCommitted{
		BaseEvent:  events.NewBaseEvent(events.TransitionCommittedEvent, request.ID, events.Actor{ID: "staff-1"}, time.Now()),
		Action:     "receive",
		FromStatus: models.StatusSubmitted,
		ToStatus:   models.StatusContactConfirmationPending,
		Request:    request,
	}

	require.NoError(t, bus.Publish(ctx, request.ID, event))

	select {
	case got := <-received:
		assert.Equal(t, "receive", got.Action)
		assert.Equal(t, request.ID, got.Request.ID)
		assert.Equal(t, "staff-1", got.Actor.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)
	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.DefenseDueEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	request := testutil.CreateTestRequest()
	require.NoError(t, bus.Publish(ctx, request.ID, events.RequestSubmitted{
		BaseEvent: events.NewBaseEvent(events.RequestSubmittedEvent, request.ID, events.Actor{ID: request.RequesterID}, time.Now()),
		Request:   request,
	}))
	require.NoError(t, bus.Publish(ctx, request.ID, events.DefenseDue{
		BaseEvent:       events.NewBaseEvent(events.DefenseDueEvent, request.ID, events.Actor{}, time.Now()),
		ScheduleVersion: 2,
		Request:         request,
	}))

	select {
	case got := <-received:
		due, ok := got.(*events.DefenseDue)
		require.True(t, ok)
		assert.Equal(t, 2, due.ScheduleVersion)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestDecode(t *testing.T) {
	event, err := eventbus.Decode(events.RequestSubmittedEvent, []byte(`{"request_id":"r1","request":{"id":"r1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", event.(*events.RequestSubmitted).Request.ID)

	_, err = eventbus.Decode("unknown", []byte(`{}`))
	assert.Error(t, err)

	_, err = eventbus.Decode(events.DefenseDueEvent, []byte(`not json`))
	assert.Error(t, err)
}
