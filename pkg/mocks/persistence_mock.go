package mocks

import (
	"context"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Requests *MockRequestRepository
	Clubs    *MockClubRepository
}

// NewMockPersistence creates a MockPersistence with fresh repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Requests: &MockRequestRepository{},
		Clubs:    &MockClubRepository{},
	}
}

func (m *MockPersistence) RequestRepository() persistence.RequestRepository {
	return m.Requests
}

func (m *MockPersistence) ClubRepository() persistence.ClubRepository {
	return m.Clubs
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockRequestRepository is a mock implementation of persistence.RequestRepository interface.
type MockRequestRepository struct {
	mock.Mock
}

func (m *MockRequestRepository) Create(ctx context.Context, request *models.EstablishmentRequest) error {
	args := m.Called(ctx, request)

	return args.Error(0)
}

func (m *MockRequestRepository) GetByID(ctx context.Context, id string) (*models.EstablishmentRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.EstablishmentRequest), args.Error(1)
}

func (m *MockRequestRepository) List(ctx context.Context, opts persistence.ListRequestsOptions) (*persistence.RequestListResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.RequestListResult), args.Error(1)
}

func (m *MockRequestRepository) History(ctx context.Context, id string) ([]*models.WorkflowHistoryEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowHistoryEntry), args.Error(1)
}

func (m *MockRequestRepository) Artifacts(ctx context.Context, id string) (*models.ArtifactSet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ArtifactSet), args.Error(1)
}

func (m *MockRequestRepository) ApplyTransition(ctx context.Context, transition *persistence.Transition) (*models.EstablishmentRequest, error) {
	args := m.Called(ctx, transition)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.EstablishmentRequest), args.Error(1)
}

// MockClubRepository is a mock implementation of persistence.ClubRepository interface.
type MockClubRepository struct {
	mock.Mock
}

func (m *MockClubRepository) GetByID(ctx context.Context, id string) (*models.Club, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Club), args.Error(1)
}

func (m *MockClubRepository) GetByRequestID(ctx context.Context, requestID string) (*models.Club, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Club), args.Error(1)
}
