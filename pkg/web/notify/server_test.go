package notify_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/subscription"
	"github.com/dukex/clubflow/pkg/web/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func setupServer(t *testing.T) (*httptest.Server, *subscription.Registry) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := subscription.NewRegistry(8, logger)
	srv := httptest.NewServer(notify.NewServer(0, registry, logger).Handler())
	t.Cleanup(srv.Close)

	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server, params url.Values) *websocket.Conn {
	t.Helper()

	conn, err := dialErr(srv, params)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func dialErr(srv *httptest.Server, params url.Values) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + params.Encode()

	return websocket.Dial(wsURL, "", srv.URL)
}

func actorParams(id, role, groups string) url.Values {
	return url.Values{
		"actor_id":     {id},
		"actor_role":   {role},
		"actor_groups": {groups},
	}
}

func send(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()

	require.NoError(t, json.NewEncoder(conn).Encode(frame))
}

func read(t *testing.T, conn *websocket.Conn) notify.ServerFrame {
	t.Helper()

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	var frame notify.ServerFrame
	require.NoError(t, json.NewDecoder(conn).Decode(&frame))

	return frame
}

func subscribe(t *testing.T, conn *websocket.Conn, topic string) notify.ServerFrame {
	t.Helper()

	send(t, conn, notify.ClientFrame{Type: notify.FrameSubscribe, Topic: models.Topic(topic), RequestID: topic})

	return read(t, conn)
}

func TestServer_RejectsAnonymous(t *testing.T) {
	srv, _ := setupServer(t)

	_, err := dialErr(srv, url.Values{})
	require.Error(t, err)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_SubscribeAndReceive(t *testing.T) {
	srv, registry := setupServer(t)
	conn := dial(t, srv, actorParams("staff-1", "STAFF", ""))

	ack := subscribe(t, conn, "ROLE:staff")
	assert.Equal(t, notify.FrameAck, ack.Type)
	assert.Equal(t, models.Topic("role:STAFF"), ack.Topic)
	assert.Equal(t, "ROLE:staff", ack.RequestID)

	report := registry.Deliver(models.NotificationMessage{
		Topic:     "role:STAFF",
		DomainTag: "club-establishment",
		Action:    "REQUEST_SUBMITTED",
		Payload:   models.NotificationPayload{RequestID: "r1", ClubName: "Chess Club"},
	})
	assert.Equal(t, 1, report.Delivered)

	frame := read(t, conn)
	assert.Equal(t, notify.FrameNotification, frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, "REQUEST_SUBMITTED", frame.Message.Action)
	assert.Equal(t, "r1", frame.Message.Payload.RequestID)
}

func TestServer_GroupTopics(t *testing.T) {
	srv, registry := setupServer(t)

	officer := dial(t, srv, actorParams("u7", "STUDENT", "7:PRESIDENT"))
	member := dial(t, srv, actorParams("u9", "STUDENT", "9:PRESIDENT,7:MEMBER"))

	assert.Equal(t, notify.FrameAck, subscribe(t, officer, "group:7").Type)
	assert.Equal(t, notify.FrameAck, subscribe(t, member, "group:9").Type)

	forbidden := subscribe(t, member, "group:7")
	assert.Equal(t, notify.FrameError, forbidden.Type)
	require.NotNil(t, forbidden.Error)
	assert.Equal(t, notify.CodeForbidden, forbidden.Error.Code)

	registry.Deliver(models.NotificationMessage{Topic: "group:7", Action: "approveFinalForm"})
	registry.Deliver(models.NotificationMessage{Topic: "group:9", Action: "approveFinalForm"})

	got := read(t, officer)
	require.NotNil(t, got.Message)
	assert.Equal(t, models.Topic("group:7"), got.Message.Topic)

	got = read(t, member)
	require.NotNil(t, got.Message)
	assert.Equal(t, models.Topic("group:9"), got.Message.Topic)
}

func TestServer_RejectsInvalidFrames(t *testing.T) {
	srv, _ := setupServer(t)
	conn := dial(t, srv, actorParams("u1", "STUDENT", ""))

	tests := []struct {
		name  string
		frame any
		code  string
	}{
		{"unknown type", map[string]any{"type": "publish", "topic": "user:u1"}, notify.CodeInvalidArgument},
		{"missing topic", map[string]any{"type": "subscribe"}, notify.CodeInvalidArgument},
		{"extra field", map[string]any{"type": "subscribe", "topic": "user:u1", "x": 1}, notify.CodeInvalidArgument},
		{"bad topic", map[string]any{"type": "subscribe", "topic": "planet:mars"}, notify.CodeInvalidArgument},
		{"someone else's queue", map[string]any{"type": "subscribe", "topic": "user:u2"}, notify.CodeForbidden},
		{"other role", map[string]any{"type": "subscribe", "topic": "role:STAFF"}, notify.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, tt.frame)

			frame := read(t, conn)
			assert.Equal(t, notify.FrameError, frame.Type)
			require.NotNil(t, frame.Error)
			assert.Equal(t, tt.code, frame.Error.Code)
		})
	}

	// The connection survives rejected frames.
	assert.Equal(t, notify.FrameAck, subscribe(t, conn, "user:u1").Type)
}

func TestServer_UnsubscribeIsIdempotent(t *testing.T) {
	srv, registry := setupServer(t)
	conn := dial(t, srv, actorParams("u1", "STUDENT", ""))

	subscribe(t, conn, "user:u1")
	require.Equal(t, 1, registry.Count("user:u1"))

	for range 2 {
		send(t, conn, notify.ClientFrame{Type: notify.FrameUnsubscribe, Topic: "user:u1"})
		assert.Equal(t, notify.FrameAck, read(t, conn).Type)
	}

	send(t, conn, notify.ClientFrame{Type: notify.FrameUnsubscribe, Topic: "role:STAFF"})
	assert.Equal(t, notify.FrameAck, read(t, conn).Type)

	assert.Equal(t, 0, registry.Count("user:u1"))
}

func TestServer_DisconnectRemovesOnlyThatSubscriber(t *testing.T) {
	srv, registry := setupServer(t)

	first := dial(t, srv, actorParams("s1", "STAFF", ""))
	second := dial(t, srv, actorParams("s2", "STAFF", ""))

	subscribe(t, first, "role:STAFF")
	subscribe(t, second, "role:STAFF")
	require.Equal(t, 2, registry.Count("role:STAFF"))

	require.NoError(t, first.Close())

	assert.Eventually(t, func() bool {
		return registry.Count("role:STAFF") == 1
	}, 2*time.Second, 10*time.Millisecond)

	registry.Deliver(models.NotificationMessage{Topic: "role:STAFF", Action: "receive"})

	frame := read(t, second)
	assert.Equal(t, notify.FrameNotification, frame.Type)
}

func TestServer_Health(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}
