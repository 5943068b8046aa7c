package workflow

import (
	"errors"
	"fmt"

	"github.com/dukex/clubflow/pkg/models"
)

var (
	// ErrInvalidTransition indicates the action is not defined for the current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrForbidden indicates the actor's role cannot perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrValidationFailed indicates a required field is missing or malformed.
	ErrValidationFailed = errors.New("validation failed")

	// ErrDefenseNotFinished indicates the defense cannot be completed before it ends.
	ErrDefenseNotFinished = fmt.Errorf("%w: defense has not finished yet", ErrValidationFailed)

	// ErrHistoryMismatch indicates a history entry does not follow the transition table.
	ErrHistoryMismatch = errors.New("history does not match transition table")
)

// TransitionError wraps an engine rejection with the edge that was attempted.
type TransitionError struct {
	Status models.Status
	Action Action
	Detail string
	Err    error
}

func (e *TransitionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s on %s: %v: %s", e.Action, e.Status, e.Err, e.Detail)
	}

	return fmt.Sprintf("%s on %s: %v", e.Action, e.Status, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func (e *TransitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func rejection(status models.Status, action Action, err error, detail string) *TransitionError {
	return &TransitionError{Status: status, Action: action, Err: err, Detail: detail}
}

// IsInvalidTransition checks if an error is an undefined (status, action) pair.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsForbidden checks if an error is a role rejection.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsValidationFailed checks if an error is a payload rejection.
func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}
