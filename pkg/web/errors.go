package web

import (
	"errors"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// actionProblem carries the status the request is really in, so the caller
// knows what to re-fetch.
type actionProblem struct {
	*problems.Problem

	CurrentStatus models.Status `json:"current_status,omitempty"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	var (
		status  int
		errType string
		detail  = err.Error()
	)

	switch {
	case services.IsUnauthenticated(err):
		status, errType = fiber.StatusUnauthorized, "unauthenticated"
	case services.IsValidationError(err):
		status, errType = fiber.StatusBadRequest, "validation_error"
	case services.IsForbidden(err):
		status, errType = fiber.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrClubNotFound):
		status, errType, detail = fiber.StatusNotFound, "club_not_found", "club not found"
	case services.IsNotFound(err):
		status, errType, detail = fiber.StatusNotFound, "request_not_found", "request not found"
	case services.IsInvalidTransition(err):
		status, errType = fiber.StatusConflict, "invalid_transition"
	case services.IsConcurrentModification(err):
		status, errType = fiber.StatusConflict, "concurrent_modification"
	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}

	problem := actionProblem{
		Problem: problems.NewStatusProblem(status).
			WithInstance(c.Path()).
			WithType(errType).
			WithDetail(detail),
	}

	if current, ok := services.CurrentStatus(err); ok {
		problem.CurrentStatus = current
	}

	return c.Status(status).JSON(problem)
}
