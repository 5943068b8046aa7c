package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
)

type requestDocument struct {
	Request   *models.EstablishmentRequest   `json:"request"`
	History   []*models.WorkflowHistoryEntry `json:"history"`
	Artifacts *models.ArtifactSet            `json:"artifacts"`
}

// RequestRepository handles request-related file operations.
type RequestRepository struct {
	root  string
	locks keyedLocks
	clubs *ClubRepository
}

// NewRequestRepository creates a new request repository.
func NewRequestRepository(root string, clubs *ClubRepository) *RequestRepository {
	return &RequestRepository{root: root, clubs: clubs}
}

func (rr *RequestRepository) path(id string) string {
	return path.Join(rr.root, "requests", id+".json")
}

func (rr *RequestRepository) load(id string) (*requestDocument, error) {
	var doc requestDocument

	found, err := readJSON(rr.path(id), &doc)
	if err != nil {
		return nil, persistence.NewRequestError("Load", id, err)
	}

	if !found || doc.Request == nil {
		return nil, persistence.NewRequestError("Load", id, persistence.ErrRequestNotFound)
	}

	if doc.Artifacts == nil {
		doc.Artifacts = models.NewArtifactSet()
	}

	if doc.History == nil {
		doc.History = make([]*models.WorkflowHistoryEntry, 0)
	}

	return &doc, nil
}

// Create stores a new request.
func (rr *RequestRepository) Create(_ context.Context, request *models.EstablishmentRequest) error {
	unlock := rr.locks.lock(request.ID)
	defer unlock()

	if _, err := os.Stat(rr.path(request.ID)); err == nil {
		return persistence.NewRequestError("Create", request.ID, persistence.ErrRequestAlreadyExists)
	}

	doc := requestDocument{
		Request:   request.Clone(),
		History:   make([]*models.WorkflowHistoryEntry, 0),
		Artifacts: models.NewArtifactSet(),
	}

	return writeJSON(rr.path(request.ID), doc)
}

// GetByID retrieves a request by its ID from the file system.
func (rr *RequestRepository) GetByID(_ context.Context, id string) (*models.EstablishmentRequest, error) {
	doc, err := rr.load(id)
	if err != nil {
		return nil, err
	}

	return doc.Request, nil
}

// History returns the audit trail of a request, oldest first.
func (rr *RequestRepository) History(_ context.Context, id string) ([]*models.WorkflowHistoryEntry, error) {
	doc, err := rr.load(id)
	if err != nil {
		return nil, err
	}

	return doc.History, nil
}

// Artifacts returns every artifact version of a request.
func (rr *RequestRepository) Artifacts(_ context.Context, id string) (*models.ArtifactSet, error) {
	doc, err := rr.load(id)
	if err != nil {
		return nil, err
	}

	return doc.Artifacts, nil
}

// ApplyTransition commits a transition under the request's lock, comparing
// the stored status and version with the expectation first.
func (rr *RequestRepository) ApplyTransition(ctx context.Context, transition *persistence.Transition) (*models.EstablishmentRequest, error) {
	err := transition.Validate()
	if err != nil {
		return nil, persistence.NewRequestError("ApplyTransition", transition.RequestID, err)
	}

	unlock := rr.locks.lock(transition.RequestID)
	defer unlock()

	doc, err := rr.load(transition.RequestID)
	if err != nil {
		return nil, err
	}

	if !transition.Matches(doc.Request) {
		return nil, persistence.NewRequestError("ApplyTransition", transition.RequestID, persistence.ErrConcurrentModification)
	}

	if transition.Club != nil {
		err = rr.clubs.save(ctx, transition.Club)
		if err != nil {
			return nil, persistence.NewRequestError("ApplyTransition", transition.RequestID, err)
		}
	}

	transition.Apply(doc.Request)
	doc.History = append(doc.History, transition.History)

	if transition.Artifact != nil {
		doc.Artifacts.Add(transition.Artifact)
	}

	err = writeJSON(rr.path(transition.RequestID), doc)
	if err != nil {
		if transition.Club != nil {
			rr.clubs.remove(transition.Club.ID)
		}

		return nil, persistence.NewRequestError("ApplyTransition", transition.RequestID, err)
	}

	return doc.Request, nil
}

// List returns paginated and filtered requests with in-memory operations.
func (rr *RequestRepository) List(_ context.Context, opts persistence.ListRequestsOptions) (*persistence.RequestListResult, error) {
	opts.Normalize()

	root := os.DirFS(path.Join(rr.root, "requests"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list request files: %w", err)
	}

	filtered := make([]*models.EstablishmentRequest, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		doc, err := rr.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			if persistence.IsRequestNotFound(err) {
				continue
			}

			return nil, err
		}

		request := doc.Request

		if opts.Status != nil && request.Status != *opts.Status {
			continue
		}

		if opts.RequesterID != "" && request.RequesterID != opts.RequesterID {
			continue
		}

		if opts.ReviewerID != "" && request.AssignedReviewerID != opts.ReviewerID {
			continue
		}

		filtered = append(filtered, request)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].ID < filtered[j].ID
		}

		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	totalCount := int64(len(filtered))

	if opts.Offset >= len(filtered) {
		return &persistence.RequestListResult{
			Requests:   make([]*models.EstablishmentRequest, 0),
			TotalCount: totalCount,
		}, nil
	}

	end := min(opts.Offset+opts.Limit, len(filtered))

	return &persistence.RequestListResult{
		Requests:    filtered[opts.Offset:end],
		TotalCount:  totalCount,
		HasNextPage: end < len(filtered),
	}, nil
}
