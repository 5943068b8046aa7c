package web

import (
	"time"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/services"
	"github.com/dukex/clubflow/pkg/workflow"
)

// SubmitRequest is the body of POST /requests.
type SubmitRequest struct {
	ClubName     string `json:"club_name"     validate:"required,min=3,max=100"`
	ClubCode     string `json:"club_code"     validate:"required,max=32"`
	Description  string `json:"description"   validate:"max=2000"`
	Category     string `json:"category"      validate:"max=100"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
	ContactPhone string `json:"contact_phone" validate:"max=32"`
}

func (r SubmitRequest) input() services.SubmitInput {
	return services.SubmitInput{
		ClubName:     r.ClubName,
		ClubCode:     r.ClubCode,
		Description:  r.Description,
		Category:     r.Category,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
	}
}

// ActionRequest is the body of POST /requests/:id/actions/:action. Only the
// fields the action needs are read. Field limits are checked by the service
// once the transition itself is known to be allowed.
type ActionRequest struct {
	ExpectedStatus  models.Status `json:"expected_status,omitempty"`
	ExpectedVersion *int64        `json:"expected_version,omitempty" validate:"omitempty,min=1"`
	Comment         string        `json:"comment,omitempty"`
	Reason          string        `json:"reason,omitempty"`
	Result          string        `json:"result,omitempty"`
	Feedback        string        `json:"feedback,omitempty"`
	ClubName        string        `json:"club_name,omitempty"`
	DocumentRef     string        `json:"document_ref,omitempty"`
	StartsAt        *time.Time    `json:"starts_at,omitempty"`
	EndsAt          *time.Time    `json:"ends_at,omitempty"`
	Location        string        `json:"location,omitempty"`
}

func (r ActionRequest) input(requestID string, action workflow.Action) services.ActionInput {
	return services.ActionInput{
		RequestID:       requestID,
		Action:          action,
		ExpectedStatus:  r.ExpectedStatus,
		ExpectedVersion: r.ExpectedVersion,
		Comment:         r.Comment,
		Reason:          r.Reason,
		Result:          models.DefenseResult(r.Result),
		Feedback:        r.Feedback,
		ClubName:        r.ClubName,
		DocumentRef:     r.DocumentRef,
		StartsAt:        r.StartsAt,
		EndsAt:          r.EndsAt,
		Location:        r.Location,
	}
}

// AllowedActionsResponse lists what the caller may do with a request now.
type AllowedActionsResponse struct {
	RequestID string            `json:"request_id"`
	Status    models.Status     `json:"status"`
	Version   int64             `json:"version"`
	Actions   []workflow.Action `json:"actions"`
}
