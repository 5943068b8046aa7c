package mocks

import (
	"context"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
	"github.com/dukex/clubflow/pkg/reconciler"
	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of reconciler.Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) GetRequest(ctx context.Context, id string) (*models.EstablishmentRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.EstablishmentRequest), args.Error(1)
}

func (m *MockFetcher) ListRequests(ctx context.Context, query reconciler.ListQuery) (*persistence.RequestListResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.RequestListResult), args.Error(1)
}
