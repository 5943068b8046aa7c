// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrRequestNotFound indicates a request was not found by the given identifier.
	ErrRequestNotFound = errors.New("request not found")

	// ErrRequestAlreadyExists indicates a request with the same identifier already exists.
	ErrRequestAlreadyExists = errors.New("request already exists")

	// ErrClubNotFound indicates a club was not found by the given identifier.
	ErrClubNotFound = errors.New("club not found")

	// ErrConcurrentModification indicates the request changed between read and write.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// RequestError wraps request-related errors with additional context.
type RequestError struct {
	Op        string // Operation being performed (e.g., "GetByID", "ApplyTransition")
	RequestID string
	Err       error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s operation failed for request %s: %v", e.Op, e.RequestID, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for request errors.
func (e *RequestError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRequestError creates a new request error with context.
func NewRequestError(op, requestID string, err error) *RequestError {
	return &RequestError{
		Op:        op,
		RequestID: requestID,
		Err:       err,
	}
}

// IsRequestNotFound checks if an error indicates a request was not found.
func IsRequestNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound)
}

// IsClubNotFound checks if an error indicates a club was not found.
func IsClubNotFound(err error) bool {
	return errors.Is(err, ErrClubNotFound)
}

// IsConcurrentModification checks if an error indicates a stale write.
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
