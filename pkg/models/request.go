// Package models defines the domain model of the club establishment workflow.
package models

import "time"

// EstablishmentRequest is a student's request to found a new club. Its
// Status only changes through transitions approved by the workflow engine.
type EstablishmentRequest struct {
	ID                 string    `json:"id"`
	ClubName           string    `json:"club_name"                      validate:"required,min=3"`
	ClubCode           string    `json:"club_code"                      validate:"required"`
	Description        string    `json:"description"`
	Category           string    `json:"category"`
	ContactEmail       string    `json:"contact_email"                  validate:"required,email"`
	ContactPhone       string    `json:"contact_phone"`
	RequesterID        string    `json:"requester_id"`
	RequesterName      string    `json:"requester_name"`
	Status             Status    `json:"status"`
	AssignedReviewerID string    `json:"assigned_reviewer_id,omitempty"`
	ClubID             string    `json:"club_id,omitempty"`
	Version            int64     `json:"version"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Clone returns a copy safe to hand to callers.
func (r *EstablishmentRequest) Clone() *EstablishmentRequest {
	if r == nil {
		return nil
	}

	out := *r

	return &out
}

// Club is the organisation provisioned once a request is approved.
type Club struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	PresidentID string    `json:"president_id"`
	RequestID   string    `json:"request_id"`
	CreatedAt   time.Time `json:"created_at"`
}
