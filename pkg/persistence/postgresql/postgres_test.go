package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
	"github.com/dukex/clubflow/pkg/persistence/postgresql"
	"github.com/dukex/clubflow/pkg/testutil"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	postgresContainer *postgres.PostgresContainer
	commitTime        = time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
)

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"clubs", "artifacts", "workflow_history", "establishment_requests", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("clubflow_test"),
			postgres.WithUsername("clubflow"),
			postgres.WithPassword("clubflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer db.Close()

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// Opening again must not re-apply migrations.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestRequestRepository_CreateGetList(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.RequestRepository()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]string, 0, 3)

	for i := range 3 {
		request := testutil.CreateTestRequest(testutil.WithCreatedAt(base.Add(time.Duration(i) * time.Hour)))
		require.NoError(t, repo.Create(ctx, request))

		ids = append(ids, request.ID)
	}

	err := repo.Create(ctx, testutil.CreateTestRequest(func(r *models.EstablishmentRequest) { r.ID = ids[0] }))
	require.ErrorIs(t, err, persistence.ErrRequestAlreadyExists)

	got, err := repo.GetByID(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "Chess Club", got.ClubName)
	assert.Empty(t, got.AssignedReviewerID)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, persistence.IsRequestNotFound(err))

	page, err := repo.List(ctx, persistence.ListRequestsOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalCount)
	require.Len(t, page.Requests, 2)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, ids[2], page.Requests[0].ID)

	status := models.StatusApproved
	none, err := repo.List(ctx, persistence.ListRequestsOptions{Status: &status})
	require.NoError(t, err)
	assert.Empty(t, none.Requests)
}

func TestRequestRepository_ApplyTransition(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.RequestRepository()

	request := testutil.CreateTestRequest(testutil.WithStatus(models.StatusProposalRequired))
	require.NoError(t, repo.Create(ctx, request))

	transition := testutil.CreateTestTransition(request, "submitProposal", models.StatusProposalSubmitted, request.RequesterID, commitTime)
	transition.Artifact = &models.Artifact{
		ID:          uuid.New().String(),
		RequestID:   request.ID,
		Kind:        models.ArtifactProposal,
		Version:     1,
		DocumentRef: "doc://proposal-1",
		CreatedBy:   request.RequesterID,
		CreatedAt:   commitTime,
	}

	updated, err := repo.ApplyTransition(ctx, transition)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProposalSubmitted, updated.Status)
	assert.Equal(t, int64(2), updated.Version)

	_, err = repo.ApplyTransition(ctx, transition)
	assert.True(t, persistence.IsConcurrentModification(err))

	history, err := repo.History(ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "submitProposal", history[0].Action)

	artifacts, err := repo.Artifacts(ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, artifacts.Proposals, 1)
	assert.Nil(t, artifacts.Proposals[0].StartsAt)

	missing := testutil.CreateTestTransition(testutil.CreateTestRequest(), "receive", models.StatusContactConfirmationPending, "staff-1", commitTime)
	_, err = repo.ApplyTransition(ctx, missing)
	assert.True(t, persistence.IsRequestNotFound(err))
}

func TestRequestRepository_ApplyTransition_ProvisionsClub(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.RequestRepository()

	request := testutil.CreateTestRequest(testutil.WithStatus(models.StatusFinalFormSubmitted))
	require.NoError(t, repo.Create(ctx, request))

	transition := testutil.CreateTestTransition(request, "approveFinalForm", models.StatusApproved, "staff-1", commitTime)
	transition.Club = &models.Club{
		ID:          uuid.New().String(),
		Name:        request.ClubName,
		Code:        request.ClubCode,
		PresidentID: request.RequesterID,
		RequestID:   request.ID,
		CreatedAt:   commitTime,
	}

	updated, err := repo.ApplyTransition(ctx, transition)
	require.NoError(t, err)
	assert.Equal(t, transition.Club.ID, updated.ClubID)

	club, err := p.ClubRepository().GetByRequestID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.RequesterID, club.PresidentID)

	_, err = p.ClubRepository().GetByID(ctx, "missing")
	assert.True(t, persistence.IsClubNotFound(err))
}

func TestRequestRepository_ApplyTransition_ConcurrentConflict(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.RequestRepository()

	request := testutil.CreateTestRequest(testutil.WithStatus(models.StatusContactConfirmed))
	require.NoError(t, repo.Create(ctx, request))

	transitions := []*persistence.Transition{
		testutil.CreateTestTransition(request, "requestNameRevision", models.StatusNameRevisionRequired, "staff-1", commitTime),
		testutil.CreateTestTransition(request, "requestProposal", models.StatusProposalRequired, "staff-2", commitTime),
	}

	errs := make([]error, len(transitions))

	var wg sync.WaitGroup

	for i, transition := range transitions {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = repo.ApplyTransition(ctx, transition)
		}()
	}

	wg.Wait()

	successes, conflicts := 0, 0

	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case persistence.IsConcurrentModification(err):
			conflicts++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	history, err := repo.History(ctx, request.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
