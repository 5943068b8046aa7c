// Package web provides the HTTP handlers of the club establishment API.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/clubflow/pkg/catalog"
	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/services"
	"github.com/dukex/clubflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	establishment *services.Establishment
	validator     *validator.Validate
}

func NewAPIHandlers(establishment *services.Establishment, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		establishment: establishment,
		validator:     validator,
	}
}

// Register mounts every route on app. Request routes require an actor.
func (h *APIHandlers) Register(app *fiber.App) {
	r := app.Group("/requests", RequireActor)
	r.Get("/", h.ListRequests)
	r.Post("/", h.SubmitRequest)
	r.Get("/:id", h.GetRequest)
	r.Get("/:id/history", h.GetHistory)
	r.Get("/:id/artifacts", h.GetArtifacts)
	r.Get("/:id/progress", h.GetProgress)
	r.Get("/:id/actions", h.GetAllowedActions)
	r.Post("/:id/actions/:action", h.PerformAction)

	app.Get("/steps", h.GetSteps)
	app.Get("/clubs/:id", RequireActor, h.GetClub)
	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) ListRequests(c fiber.Ctx) error {
	req, err := parseListRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.establishment.List(c.Context(), actorFrom(c), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"requests":      result.Requests,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

// parseListRequest parses query parameters for listing requests.
func parseListRequest(c fiber.Ctx) (*services.ListRequest, error) {
	req := &services.ListRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.Status(statusStr)
		req.Status = &status
	}

	req.RequesterID = c.Query("requester_id")
	req.ReviewerID = c.Query("reviewer_id")

	return req, nil
}

func (h *APIHandlers) SubmitRequest(c fiber.Ctx) error {
	var req SubmitRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.establishment.Submit(c.Context(), actorFrom(c), req.input())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetRequest(c fiber.Ctx) error {
	detail, err := h.establishment.Detail(c.Context(), actorFrom(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) GetHistory(c fiber.Ctx) error {
	history, err := h.establishment.History(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"history": history})
}

func (h *APIHandlers) GetArtifacts(c fiber.Ctx) error {
	artifacts, err := h.establishment.Artifacts(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(artifacts)
}

func (h *APIHandlers) GetProgress(c fiber.Ctx) error {
	progress, err := h.establishment.Progress(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(progress)
}

func (h *APIHandlers) GetAllowedActions(c fiber.Ctx) error {
	detail, err := h.establishment.Detail(c.Context(), actorFrom(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(AllowedActionsResponse{
		RequestID: detail.Request.ID,
		Status:    detail.Request.Status,
		Version:   detail.Request.Version,
		Actions:   detail.AllowedActions,
	})
}

func (h *APIHandlers) PerformAction(c fiber.Ctx) error {
	action, ok := workflow.ParseAction(c.Params("action"))
	if !ok {
		return notFound(c, "Unknown action "+c.Params("action"))
	}

	var req ActionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.ExpectedStatus != "" && !req.ExpectedStatus.Valid() {
		return badRequest(c, "Unknown expected_status "+string(req.ExpectedStatus))
	}

	updated, err := h.establishment.Perform(c.Context(), actorFrom(c), req.input(c.Params("id"), action))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) GetSteps(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"steps": catalog.Steps()})
}

func (h *APIHandlers) GetClub(c fiber.Ctx) error {
	club, err := h.establishment.Club(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(club)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.establishment.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Clubflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Clubflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
