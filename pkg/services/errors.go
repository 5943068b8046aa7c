// Package services implements the establishment request use cases on top of
// the workflow engine and the persistence layer.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
	"github.com/dukex/clubflow/pkg/workflow"
)

var (
	// ErrInvalidRequest indicates malformed input (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnauthenticated indicates the call carried no actor identity.
	ErrUnauthenticated = errors.New("actor identity is required")

	ErrRequestNotFound        = persistence.ErrRequestNotFound
	ErrClubNotFound           = persistence.ErrClubNotFound
	ErrConcurrentModification = persistence.ErrConcurrentModification
	ErrInvalidTransition      = workflow.ErrInvalidTransition
	ErrForbidden              = workflow.ErrForbidden
	ErrValidationFailed       = workflow.ErrValidationFailed
	ErrDefenseNotFinished     = workflow.ErrDefenseNotFinished
)

// ActionError wraps a failed workflow action with the status the request
// was in, so callers can tell the actor what to re-fetch.
type ActionError struct {
	Op        string // Operation name
	RequestID string
	Status    models.Status // Empty when the request could not be loaded
	Err       error
}

func (e *ActionError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s %s (status %s): %v", e.Op, e.RequestID, e.Status, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.RequestID, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func (e *ActionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newActionError(op, requestID string, status models.Status, err error) *ActionError {
	return &ActionError{Op: op, RequestID: requestID, Status: status, Err: err}
}

// CurrentStatus extracts the request status carried by an action error.
func CurrentStatus(err error) (models.Status, bool) {
	var actionErr *ActionError
	if errors.As(err, &actionErr) && actionErr.Status != "" {
		return actionErr.Status, true
	}

	return "", false
}

// IsValidationError checks if an error should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrValidationFailed)
}

// IsNotFound checks if an error should return HTTP 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) || errors.Is(err, ErrClubNotFound)
}

// IsForbidden checks if an error should return HTTP 403.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnauthenticated checks if an error should return HTTP 401.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsInvalidTransition checks if an error is an action undefined for the current status.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsConcurrentModification checks if an error is a stale write.
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
