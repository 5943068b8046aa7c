// Package persistence provides the storage abstraction for establishment
// requests, their audit trail and artifacts.
package persistence

import (
	"context"

	"github.com/dukex/clubflow/pkg/models"
)

type Persistence interface {
	RequestRepository() RequestRepository
	ClubRepository() ClubRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// RequestRepository owns establishment request state. Status only changes
// through ApplyTransition.
type RequestRepository interface {
	Create(ctx context.Context, request *models.EstablishmentRequest) error
	GetByID(ctx context.Context, id string) (*models.EstablishmentRequest, error)
	List(ctx context.Context, opts ListRequestsOptions) (*RequestListResult, error)
	History(ctx context.Context, id string) ([]*models.WorkflowHistoryEntry, error)
	Artifacts(ctx context.Context, id string) (*models.ArtifactSet, error)

	// ApplyTransition atomically moves the request from the expected
	// (status, version) to the next status, appends the history entry and
	// stores any artifact or club carried by the transition. It returns
	// ErrConcurrentModification when the stored state no longer matches.
	ApplyTransition(ctx context.Context, transition *Transition) (*models.EstablishmentRequest, error)
}

type ClubRepository interface {
	GetByID(ctx context.Context, id string) (*models.Club, error)
	GetByRequestID(ctx context.Context, requestID string) (*models.Club, error)
}

// ListRequestsOptions filters and paginates request listings.
type ListRequestsOptions struct {
	Limit       int
	Offset      int
	Status      *models.Status
	RequesterID string
	ReviewerID  string
}

// Normalize applies the default page size.
func (o *ListRequestsOptions) Normalize() {
	if o.Limit <= 0 || o.Limit > 100 {
		o.Limit = 20
	}

	if o.Offset < 0 {
		o.Offset = 0
	}
}

// RequestListResult holds one page of requests ordered by creation, newest first.
type RequestListResult struct {
	Requests    []*models.EstablishmentRequest `json:"requests"`
	TotalCount  int64                          `json:"total_count"`
	HasNextPage bool                           `json:"has_next_page"`
}
