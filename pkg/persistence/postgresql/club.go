package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
)

const clubColumns = `id, name, code, description, category, president_id, request_id, created_at`

// ClubRepository reads clubs provisioned by approved requests.
type ClubRepository struct {
	db *sql.DB
}

// NewClubRepository creates a new club repository.
func NewClubRepository(db *sql.DB) *ClubRepository {
	return &ClubRepository{db: db}
}

func (r *ClubRepository) GetByID(ctx context.Context, id string) (*models.Club, error) {
	return r.get(ctx, "id", id)
}

func (r *ClubRepository) GetByRequestID(ctx context.Context, requestID string) (*models.Club, error) {
	return r.get(ctx, "request_id", requestID)
}

func (r *ClubRepository) get(ctx context.Context, column, value string) (*models.Club, error) {
	var club models.Club

	query := `SELECT ` + clubColumns + ` FROM clubs WHERE ` + column + ` = $1`

	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&club.ID,
		&club.Name,
		&club.Code,
		&club.Description,
		&club.Category,
		&club.PresidentID,
		&club.RequestID,
		&club.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("club %s=%s: %w", column, value, persistence.ErrClubNotFound)
		}

		return nil, fmt.Errorf("failed to query club: %w", err)
	}

	return &club, nil
}

func insertClub(ctx context.Context, tx *sql.Tx, club *models.Club) error {
	query := `INSERT INTO clubs (` + clubColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.ExecContext(ctx, query,
		club.ID,
		club.Name,
		club.Code,
		club.Description,
		club.Category,
		club.PresidentID,
		club.RequestID,
		club.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert club: %w", err)
	}

	return nil
}
