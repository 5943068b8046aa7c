package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
)

// ListQuery selects the list view kept by the reconciler.
type ListQuery struct {
	Status string
	Limit  int
	Offset int
}

// Fetcher reads authoritative state from the server.
type Fetcher interface {
	GetRequest(ctx context.Context, id string) (*models.EstablishmentRequest, error)
	ListRequests(ctx context.Context, query ListQuery) (*persistence.RequestListResult, error)
}

// Reconciler caches request snapshots and refreshes them on notification.
// Snapshots are replaced whole. A fetched snapshot never replaces a cached
// one with a higher version, so duplicate and reordered messages converge.
type Reconciler struct {
	fetcher Fetcher
	logger  *slog.Logger

	mu       sync.RWMutex
	requests map[string]*models.EstablishmentRequest
	list     []string
	total    int64
	query    ListQuery
	open     string
}

func New(fetcher Fetcher, query ListQuery, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		fetcher:  fetcher,
		logger:   logger.With("module", "reconciler"),
		requests: make(map[string]*models.EstablishmentRequest),
		query:    query,
	}
}

// Open marks id as the detail view currently displayed. An empty id closes it.
func (r *Reconciler) Open(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.open = id
}

// Handle classifies msg and performs the re-fetches it calls for.
func (r *Reconciler) Handle(ctx context.Context, msg models.NotificationMessage) (Invalidation, error) {
	invalidation := Classify(msg)
	if invalidation.Empty() {
		r.logger.DebugContext(ctx, "Ignoring notification", "action", msg.Action)

		return invalidation, nil
	}

	return invalidation, r.Apply(ctx, invalidation)
}

// Apply executes an invalidation. Every fetch is attempted; the errors are joined.
func (r *Reconciler) Apply(ctx context.Context, invalidation Invalidation) error {
	var errs []error

	for _, id := range r.entities(invalidation) {
		if err := r.RefreshRequest(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	if invalidation.RefetchList {
		if err := r.RefreshList(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Reconciler) entities(invalidation Invalidation) []string {
	r.mu.RLock()
	open := r.open
	r.mu.RUnlock()

	ids := make([]string, 0, 2)
	if invalidation.RefetchEntity != "" {
		ids = append(ids, invalidation.RefetchEntity)
	}

	if invalidation.RefetchEntity != "" && open != "" && open != invalidation.RefetchEntity {
		ids = append(ids, open)
	}

	return ids
}

// RefreshRequest re-reads one request.
func (r *Reconciler) RefreshRequest(ctx context.Context, id string) error {
	request, err := r.fetcher.GetRequest(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to refetch request %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.store(request)

	return nil
}

// RefreshList re-reads the list view and replaces it.
func (r *Reconciler) RefreshList(ctx context.Context) error {
	r.mu.RLock()
	query := r.query
	r.mu.RUnlock()

	result, err := r.fetcher.ListRequests(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to refetch request list: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(result.Requests))
	for _, request := range result.Requests {
		if request == nil {
			continue
		}

		r.store(request)
		ids = append(ids, request.ID)
	}

	r.list = ids
	r.total = result.TotalCount

	return nil
}

// store must be called with mu held.
func (r *Reconciler) store(request *models.EstablishmentRequest) {
	if request == nil {
		return
	}

	cached, ok := r.requests[request.ID]
	if ok && cached.Version > request.Version {
		r.logger.Debug("Keeping newer cached snapshot",
			"request_id", request.ID,
			"cached_version", cached.Version,
			"fetched_version", request.Version)

		return
	}

	snapshot := *request
	r.requests[request.ID] = &snapshot
}

// Request returns a copy of the cached snapshot of id.
func (r *Reconciler) Request(id string) (*models.EstablishmentRequest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cached, ok := r.requests[id]
	if !ok {
		return nil, false
	}

	snapshot := *cached

	return &snapshot, true
}

// List returns the current list view and the server-side total.
func (r *Reconciler) List() ([]*models.EstablishmentRequest, int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.EstablishmentRequest, 0, len(r.list))
	for _, id := range r.list {
		cached, ok := r.requests[id]
		if !ok {
			continue
		}

		snapshot := *cached
		out = append(out, &snapshot)
	}

	return out, r.total
}

// Run feeds every message from messages into Handle until the channel
// closes or ctx is done. Fetch errors are logged; the loop keeps going.
func (r *Reconciler) Run(ctx context.Context, messages <-chan models.NotificationMessage) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			invalidation, err := r.Handle(ctx, msg)
			if err != nil {
				r.logger.ErrorContext(ctx, "Failed to reconcile notification",
					"action", msg.Action,
					"request_id", invalidation.RefetchEntity,
					"error", err)
			}
		}
	}
}
