package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
	"github.com/lib/pq"
)

const requestColumns = `
			id
		  , club_name
		  , club_code
		  , description
		  , category
		  , contact_email
		  , contact_phone
		  , requester_id
		  , requester_name
		  , status
		  , assigned_reviewer_id
		  , club_id
		  , version
		  , created_at
		  , updated_at`

const uniqueViolation = "23505"

type scanner interface {
	Scan(dest ...any) error
}

// RequestRepository handles establishment request database operations.
type RequestRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRequestRepository creates a new request repository.
func NewRequestRepository(db *sql.DB, logger *slog.Logger) *RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

// Create inserts a new request.
func (r *RequestRepository) Create(ctx context.Context, request *models.EstablishmentRequest) error {
	query := `
		INSERT INTO establishment_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.ClubName,
		request.ClubCode,
		request.Description,
		request.Category,
		request.ContactEmail,
		request.ContactPhone,
		request.RequesterID,
		request.RequesterName,
		request.Status,
		request.AssignedReviewerID,
		request.ClubID,
		request.Version,
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewRequestError("Create", request.ID, persistence.ErrRequestAlreadyExists)
		}

		return persistence.NewRequestError("Create", request.ID, err)
	}

	return nil
}

// GetByID returns a request by its ID.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.EstablishmentRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM establishment_requests WHERE id = $1`

	request, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRequestError("GetByID", id, persistence.ErrRequestNotFound)
		}

		return nil, persistence.NewRequestError("GetByID", id, err)
	}

	return request, nil
}

// List returns one page of requests, newest first.
func (r *RequestRepository) List(ctx context.Context, opts persistence.ListRequestsOptions) (*persistence.RequestListResult, error) {
	opts.Normalize()

	conditions := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if opts.RequesterID != "" {
		args = append(args, opts.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
	}

	if opts.ReviewerID != "" {
		args = append(args, opts.ReviewerID)
		conditions = append(conditions, fmt.Sprintf("assigned_reviewer_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM establishment_requests"+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf(`SELECT %s FROM establishment_requests%s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d`,
		requestColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}

	defer r.closeRows(ctx, rows)

	requests := make([]*models.EstablishmentRequest, 0, opts.Limit)

	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}

		requests = append(requests, request)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}

	return &persistence.RequestListResult{
		Requests:    requests,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(requests)) < totalCount,
	}, nil
}

// History returns the audit trail of a request in commit order.
func (r *RequestRepository) History(ctx context.Context, id string) ([]*models.WorkflowHistoryEntry, error) {
	err := r.ensureExists(ctx, id)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			id
		  , request_id
		  , step_code
		  , action
		  , from_status
		  , to_status
		  , actor_id
		  , COALESCE(comment, '')
		  , COALESCE(result, '')
		  , action_date
		FROM workflow_history
		WHERE request_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	defer r.closeRows(ctx, rows)

	history := make([]*models.WorkflowHistoryEntry, 0)

	for rows.Next() {
		var entry models.WorkflowHistoryEntry

		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.StepCode,
			&entry.Action,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.ActorID,
			&entry.Comment,
			&entry.Result,
			&entry.ActionDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		history = append(history, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return history, nil
}

// Artifacts returns all artifact versions of a request.
func (r *RequestRepository) Artifacts(ctx context.Context, id string) (*models.ArtifactSet, error) {
	err := r.ensureExists(ctx, id)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			id
		  , request_id
		  , kind
		  , version
		  , COALESCE(document_ref, '')
		  , COALESCE(comment, '')
		  , created_by
		  , created_at
		  , starts_at
		  , ends_at
		  , COALESCE(location, '')
		FROM artifacts
		WHERE request_id = $1
		ORDER BY kind, version ASC
	`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}

	defer r.closeRows(ctx, rows)

	set := models.NewArtifactSet()

	for rows.Next() {
		var (
			artifact         models.Artifact
			startsAt, endsAt sql.NullTime
		)

		err := rows.Scan(
			&artifact.ID,
			&artifact.RequestID,
			&artifact.Kind,
			&artifact.Version,
			&artifact.DocumentRef,
			&artifact.Comment,
			&artifact.CreatedBy,
			&artifact.CreatedAt,
			&startsAt,
			&endsAt,
			&artifact.Location,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}

		if startsAt.Valid {
			artifact.StartsAt = &startsAt.Time
		}

		if endsAt.Valid {
			artifact.EndsAt = &endsAt.Time
		}

		set.Add(&artifact)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}

	return set, nil
}

// ApplyTransition commits the status change together with its history entry,
// artifact and club in one transaction. The update is guarded by the expected
// status and version.
func (r *RequestRepository) ApplyTransition(ctx context.Context, transition *persistence.Transition) (*models.EstablishmentRequest, error) {
	err := transition.Validate()
	if err != nil {
		return nil, persistence.NewRequestError("ApplyTransition", transition.RequestID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	clubID := ""
	if transition.Club != nil {
		clubID = transition.Club.ID
	}

	updateQuery := `
		UPDATE establishment_requests SET
			status = $4
		  , version = version + 1
		  , updated_at = $5
		  , club_name = COALESCE(NULLIF($6, ''), club_name)
		  , assigned_reviewer_id = COALESCE(NULLIF($7, ''), assigned_reviewer_id)
		  , club_id = COALESCE(NULLIF($8, ''), club_id)
		WHERE id = $1 AND status = $2 AND version = $3
		RETURNING ` + requestColumns

	updated, err := scanRequest(tx.QueryRowContext(ctx, updateQuery,
		transition.RequestID,
		transition.ExpectedStatus,
		transition.ExpectedVersion,
		transition.NextStatus,
		transition.CommittedAt,
		transition.ClubName,
		transition.AssignedReviewerID,
		clubID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = r.ensureExists(ctx, transition.RequestID)
			if err == nil {
				err = persistence.NewRequestError("ApplyTransition", transition.RequestID, persistence.ErrConcurrentModification)
			}

			return nil, err
		}

		return nil, persistence.NewRequestError("ApplyTransition", transition.RequestID, err)
	}

	err = insertHistory(ctx, tx, transition.History)
	if err != nil {
		return nil, persistence.NewRequestError("ApplyTransition", transition.RequestID, err)
	}

	if transition.Artifact != nil {
		err = insertArtifact(ctx, tx, transition.Artifact)
		if err != nil {
			return nil, persistence.NewRequestError("ApplyTransition", transition.RequestID, err)
		}
	}

	if transition.Club != nil {
		err = insertClub(ctx, tx, transition.Club)
		if err != nil {
			return nil, persistence.NewRequestError("ApplyTransition", transition.RequestID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	return updated, nil
}

func (r *RequestRepository) ensureExists(ctx context.Context, id string) error {
	var exists bool

	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM establishment_requests WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return persistence.NewRequestError("Exists", id, err)
	}

	if !exists {
		return persistence.NewRequestError("Exists", id, persistence.ErrRequestNotFound)
	}

	return nil
}

func (r *RequestRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func scanRequest(row scanner) (*models.EstablishmentRequest, error) {
	var (
		request    models.EstablishmentRequest
		reviewerID sql.NullString
		clubID     sql.NullString
	)

	err := row.Scan(
		&request.ID,
		&request.ClubName,
		&request.ClubCode,
		&request.Description,
		&request.Category,
		&request.ContactEmail,
		&request.ContactPhone,
		&request.RequesterID,
		&request.RequesterName,
		&request.Status,
		&reviewerID,
		&clubID,
		&request.Version,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	request.AssignedReviewerID = reviewerID.String
	request.ClubID = clubID.String

	return &request, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, entry *models.WorkflowHistoryEntry) error {
	query := `
		INSERT INTO workflow_history (id, request_id, step_code, action, from_status, to_status, actor_id, comment, result, action_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
	`

	_, err := tx.ExecContext(ctx, query,
		entry.ID,
		entry.RequestID,
		entry.StepCode,
		entry.Action,
		entry.FromStatus,
		entry.ToStatus,
		entry.ActorID,
		entry.Comment,
		string(entry.Result),
		entry.ActionDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	return nil
}

func insertArtifact(ctx context.Context, tx *sql.Tx, artifact *models.Artifact) error {
	query := `
		INSERT INTO artifacts (id, request_id, kind, version, document_ref, comment, created_by, created_at, starts_at, ends_at, location)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, NULLIF($11, ''))
	`

	_, err := tx.ExecContext(ctx, query,
		artifact.ID,
		artifact.RequestID,
		artifact.Kind,
		artifact.Version,
		artifact.DocumentRef,
		artifact.Comment,
		artifact.CreatedBy,
		artifact.CreatedAt,
		artifact.StartsAt,
		artifact.EndsAt,
		artifact.Location,
	)
	if err != nil {
		return fmt.Errorf("failed to insert artifact: %w", err)
	}

	return nil
}
