package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
)

// ClubRepository stores provisioned clubs as one JSON file each.
type ClubRepository struct {
	root string
}

// NewClubRepository creates a new club repository.
func NewClubRepository(root string) *ClubRepository {
	return &ClubRepository{root: root}
}

func (cr *ClubRepository) path(id string) string {
	return path.Join(cr.root, "clubs", id+".json")
}

// GetByID retrieves a club by its ID.
func (cr *ClubRepository) GetByID(_ context.Context, id string) (*models.Club, error) {
	var club models.Club

	found, err := readJSON(cr.path(id), &club)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("club %s: %w", id, persistence.ErrClubNotFound)
	}

	return &club, nil
}

// GetByRequestID finds the club provisioned from a request.
func (cr *ClubRepository) GetByRequestID(ctx context.Context, requestID string) (*models.Club, error) {
	files, err := fs.Glob(os.DirFS(path.Join(cr.root, "clubs")), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list club files: %w", err)
	}

	for _, name := range files {
		club, err := cr.GetByID(ctx, name[:len(name)-len(".json")])
		if err != nil {
			return nil, err
		}

		if club.RequestID == requestID {
			return club, nil
		}
	}

	return nil, fmt.Errorf("club for request %s: %w", requestID, persistence.ErrClubNotFound)
}

func (cr *ClubRepository) save(_ context.Context, club *models.Club) error {
	return writeJSON(cr.path(club.ID), club)
}

func (cr *ClubRepository) remove(id string) {
	_ = os.Remove(cr.path(id))
}
