package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukex/clubflow/pkg/cmd"
	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/notification"
	"github.com/dukex/clubflow/pkg/persistence/file"
	"github.com/dukex/clubflow/pkg/services"
	"github.com/dukex/clubflow/pkg/subscription"
	"github.com/dukex/clubflow/pkg/web"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAPI_HealthEndpoints(t *testing.T) {
	establishment := services.NewEstablishment(file.NewPersistence(t.TempDir()), nil, discard())
	app := NewAPI(discard(), establishment).App()

	for _, path := range []string{"/", "/health", healthcheck.DefaultLivenessEndpoint, healthcheck.DefaultReadinessEndpoint} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAPI_ReadinessFailsWithoutStorage(t *testing.T) {
	establishment := services.NewEstablishment(file.NewPersistence(t.TempDir()+"/missing"), nil, discard())
	app := NewAPI(discard(), establishment).App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, healthcheck.DefaultReadinessEndpoint, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAPI_SubmissionReachesStaffSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, err := cmd.NewEventBus("gochannel", discard(), nil)
	require.NoError(t, err)

	defer func() { _ = bus.Close() }()

	registry := subscription.NewRegistry(8, discard())
	require.NoError(t, startNotifications(ctx, bus, registry, discard()))

	staff := registry.Register(models.ActorContext{ID: "staff-1", Name: "Dana", GlobalRole: models.GlobalRoleStaff})
	_, err = registry.Subscribe(staff.ID, models.RoleTopic(models.GlobalRoleStaff))
	require.NoError(t, err)

	establishment := services.NewEstablishment(file.NewPersistence(t.TempDir()), bus, discard())
	app := NewAPI(discard(), establishment).App()

	payload, err := json.Marshal(web.SubmitRequest{
		ClubName:     "Chess Club",
		ClubCode:     "CHESS",
		ContactEmail: "chess@example.edu",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(web.HeaderActorID, "student-1")
	req.Header.Set(web.HeaderActorName, "Sam")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	select {
	case msg := <-staff.Outbox():
		assert.Equal(t, notification.ActionRequestSubmitted, msg.Action)
		assert.Equal(t, notification.DomainTag, msg.DomainTag)
		assert.Equal(t, "Chess Club", msg.Payload.ClubName)
	case <-time.After(5 * time.Second):
		t.Fatal("staff subscriber was not notified")
	}
}
