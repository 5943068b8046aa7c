// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestRequest creates a SUBMITTED EstablishmentRequest with default values that can be overridden.
func CreateTestRequest(overrides ...func(*models.EstablishmentRequest)) *models.EstablishmentRequest {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	request := &models.EstablishmentRequest{
		ID:            uuid.New().String(),
		ClubName:      "Chess Club",
		ClubCode:      "CHESS",
		Description:   "Weekly games and tournaments",
		Category:      "games",
		ContactEmail:  "student@example.edu",
		ContactPhone:  "+1 555 0100",
		RequesterID:   "student-1",
		RequesterName: "Sam Student",
		Status:        models.StatusSubmitted,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, override := range overrides {
		override(request)
	}

	return request
}

// WithStatus sets the request status.
func WithStatus(status models.Status) func(*models.EstablishmentRequest) {
	return func(r *models.EstablishmentRequest) {
		r.Status = status
	}
}

// WithRequester sets the requesting student.
func WithRequester(id string) func(*models.EstablishmentRequest) {
	return func(r *models.EstablishmentRequest) {
		r.RequesterID = id
	}
}

// WithReviewer assigns a staff reviewer.
func WithReviewer(id string) func(*models.EstablishmentRequest) {
	return func(r *models.EstablishmentRequest) {
		r.AssignedReviewerID = id
	}
}

// WithCreatedAt sets both timestamps.
func WithCreatedAt(at time.Time) func(*models.EstablishmentRequest) {
	return func(r *models.EstablishmentRequest) {
		r.CreatedAt = at
		r.UpdatedAt = at
	}
}

// Staff returns a staff actor.
func Staff(id string) models.ActorContext {
	return models.ActorContext{ID: id, Name: "Staff " + id, GlobalRole: models.GlobalRoleStaff}
}

// Student returns a student actor holding the given group roles.
func Student(id string, groups map[string]models.GroupRole) models.ActorContext {
	return models.ActorContext{ID: id, Name: "Student " + id, GlobalRole: models.GlobalRoleStudent, GroupRoles: groups}
}
