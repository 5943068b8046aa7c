package client_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/clubflow/pkg/client"
	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
	"github.com/dukex/clubflow/pkg/reconciler"
	"github.com/dukex/clubflow/pkg/services"
	"github.com/dukex/clubflow/pkg/subscription"
	"github.com/dukex/clubflow/pkg/testutil"
	"github.com/dukex/clubflow/pkg/web"
	"github.com/dukex/clubflow/pkg/web/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_GetRequest(t *testing.T) {
	request := testutil.CreateTestRequest(testutil.WithStatus(models.StatusProposalSubmitted))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "staff-1", r.Header.Get(web.HeaderActorID))
		assert.Equal(t, "STAFF", r.Header.Get(web.HeaderActorRole))

		switch r.URL.Path {
		case "/requests/" + request.ID:
			writeJSON(w, http.StatusOK, services.RequestDetail{Request: request})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{
				"type":   "request_not_found",
				"status": 404,
				"detail": "request not found",
			})
		}
	}))
	defer srv.Close()

	c := client.New(srv.URL, testutil.Staff("staff-1"), discard())

	got, err := c.GetRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProposalSubmitted, got.Status)

	_, err = c.GetRequest(context.Background(), "missing")
	require.ErrorIs(t, err, persistence.ErrRequestNotFound)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClient_ListRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/requests", r.URL.Path)
		assert.Equal(t, "SUBMITTED", r.URL.Query().Get("status"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		writeJSON(w, http.StatusOK, map[string]any{
			"requests":      []*models.EstablishmentRequest{testutil.CreateTestRequest()},
			"total_count":   9,
			"has_next_page": true,
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL, testutil.Student("student-1", nil), discard())

	result, err := c.ListRequests(context.Background(), reconciler.ListQuery{Status: "SUBMITTED", Limit: 5})
	require.NoError(t, err)
	assert.Len(t, result.Requests, 1)
	assert.Equal(t, int64(9), result.TotalCount)
	assert.True(t, result.HasNextPage)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"requests": []any{}, "total_count": 0})
	}))
	defer srv.Close()

	c := client.New(srv.URL, testutil.Staff("s"), discard(), client.WithRetry(3, time.Millisecond))

	_, err := c.ListRequests(context.Background(), reconciler.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	c = client.New(srv.URL, testutil.Staff("s"), discard(), client.WithRetry(2, time.Millisecond))

	_, err = c.ListRequests(context.Background(), reconciler.ListQuery{})
	require.ErrorIs(t, err, client.ErrServer)
}

func TestStream_FeedsReconciler(t *testing.T) {
	registry := subscription.NewRegistry(8, discard())
	notifySrv := httptest.NewServer(notify.NewServer(0, registry, discard()).Handler())
	defer notifySrv.Close()

	request := testutil.CreateTestRequest(testutil.WithStatus(models.StatusContactConfirmationPending))
	request.Version = 2

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/requests" {
			writeJSON(w, http.StatusOK, map[string]any{"requests": []*models.EstablishmentRequest{request}, "total_count": 1})

			return
		}

		writeJSON(w, http.StatusOK, services.RequestDetail{Request: request})
	}))
	defer apiSrv.Close()

	actor := testutil.Student("student-1", nil)

	stream, err := client.Dial(notifySrv.URL, actor, discard())
	require.NoError(t, err)

	defer func() { _ = stream.Close() }()

	require.NoError(t, stream.Subscribe(models.UserTopic(actor.ID)))
	require.Eventually(t, func() bool {
		return registry.Count(models.UserTopic(actor.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	r := reconciler.New(client.New(apiSrv.URL, actor, discard()), reconciler.ListQuery{}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = r.Run(ctx, stream.Listen(ctx)) }()

	registry.Deliver(models.NotificationMessage{
		Topic:   models.UserTopic(actor.ID),
		Action:  "receive",
		Payload: models.NotificationPayload{RequestID: request.ID, Status: models.StatusRejected},
	})

	require.Eventually(t, func() bool {
		got, ok := r.Request(request.ID)

		return ok && got.Status == models.StatusContactConfirmationPending
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		list, total := r.List()

		return len(list) == 1 && total == 1
	}, 2*time.Second, 10*time.Millisecond)
}
