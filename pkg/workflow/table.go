package workflow

import (
	"strings"
	"time"

	"github.com/dukex/clubflow/pkg/models"
)

// Payload carries the action input the engine validates. Now is the server
// clock at decision time; DefenseEndsAt is the end of the latest approved
// defense schedule, when one exists.
type Payload struct {
	Comment     string
	Reason      string
	Result      models.DefenseResult
	Feedback    string
	ClubName    string
	DocumentRef string
	StartsAt    *time.Time
	EndsAt      *time.Time

	DefenseEndsAt *time.Time
	Now           time.Time
}

// Note returns the text recorded in history for the action: the reason for
// rejections, the feedback for completed defenses, the comment otherwise.
func (p Payload) Note() string {
	switch {
	case strings.TrimSpace(p.Reason) != "":
		return strings.TrimSpace(p.Reason)
	case strings.TrimSpace(p.Feedback) != "":
		return strings.TrimSpace(p.Feedback)
	default:
		return strings.TrimSpace(p.Comment)
	}
}

type edge struct {
	from   models.Status
	action Action
}

type rule struct {
	role      ActorRole
	next      models.Status
	artifact  models.ArtifactKind
	check     func(Payload) (string, error)
	resolve   func(Payload) models.Status
	provision bool
}

// TransitionDef describes one edge of the table for display and label lookups.
type TransitionDef struct {
	From     models.Status       `json:"from"`
	Action   Action              `json:"action"`
	Role     string              `json:"role"`
	To       []models.Status     `json:"to"`
	Artifact models.ArtifactKind `json:"artifact,omitempty"`
}

var order []edge

var table = map[edge]rule{}

func define(from models.Status, action Action, r rule) {
	e := edge{from: from, action: action}
	if _, exists := table[e]; exists {
		panic("workflow: duplicate transition " + string(action) + " from " + string(from))
	}

	table[e] = r
	order = append(order, e)
}

func init() {
	define(models.StatusSubmitted, ActionReceive, rule{
		role: RoleStaff,
		next: models.StatusContactConfirmationPending,
	})
	define(models.StatusContactConfirmationPending, ActionConfirmContact, rule{
		role: RoleStaff,
		next: models.StatusContactConfirmed,
	})
	define(models.StatusContactConfirmationPending, ActionRejectContact, rule{
		role:  RoleStaff,
		next:  models.StatusContactRejected,
		check: requireReason,
	})
	define(models.StatusContactConfirmed, ActionRequestNameRevision, rule{
		role: RoleStaff,
		next: models.StatusNameRevisionRequired,
	})
	define(models.StatusNameRevisionRequired, ActionResubmitName, rule{
		role:  RoleRequester,
		next:  models.StatusContactConfirmed,
		check: requireClubName,
	})
	define(models.StatusContactConfirmed, ActionRequestProposal, rule{
		role: RoleStaff,
		next: models.StatusProposalRequired,
	})
	define(models.StatusProposalRequired, ActionSubmitProposal, rule{
		role:     RoleRequester,
		next:     models.StatusProposalSubmitted,
		artifact: models.ArtifactProposal,
		check:    requireDocument,
	})
	define(models.StatusProposalSubmitted, ActionApproveProposal, rule{
		role: RoleStaff,
		next: models.StatusProposalApproved,
	})
	define(models.StatusProposalSubmitted, ActionRejectProposal, rule{
		role:  RoleStaff,
		next:  models.StatusProposalRejected,
		check: requireReason,
	})
	define(models.StatusProposalRejected, ActionSubmitProposal, rule{
		role:     RoleRequester,
		next:     models.StatusProposalSubmitted,
		artifact: models.ArtifactProposal,
		check:    requireDocument,
	})
	define(models.StatusProposalApproved, ActionProposeDefenseSchedule, rule{
		role:     RoleRequester,
		next:     models.StatusDefenseScheduleProposed,
		artifact: models.ArtifactDefenseSchedule,
		check:    requireScheduleWindow,
	})
	define(models.StatusDefenseScheduleProposed, ActionApproveDefenseSchedule, rule{
		role: RoleStaff,
		next: models.StatusDefenseScheduleApproved,
	})
	define(models.StatusDefenseScheduleProposed, ActionRejectDefenseSchedule, rule{
		role:  RoleStaff,
		next:  models.StatusDefenseScheduleRejected,
		check: requireReason,
	})
	define(models.StatusDefenseScheduleRejected, ActionProposeDefenseSchedule, rule{
		role:     RoleRequester,
		next:     models.StatusDefenseScheduleProposed,
		artifact: models.ArtifactDefenseSchedule,
		check:    requireScheduleWindow,
	})
	define(models.StatusDefenseScheduleApproved, ActionCompleteDefense, rule{
		role:    RoleStaff,
		next:    models.StatusDefenseCompleted,
		check:   requireElapsedDefense,
		resolve: defenseOutcome,
	})
	define(models.StatusDefenseCompleted, ActionSubmitFinalForm, rule{
		role:     RoleRequester,
		next:     models.StatusFinalFormSubmitted,
		artifact: models.ArtifactFinalForm,
		check:    requireDocument,
	})
	define(models.StatusFinalFormSubmitted, ActionApproveFinalForm, rule{
		role:      RoleStaff,
		next:      models.StatusApproved,
		provision: true,
	})
}

func requireReason(p Payload) (string, error) {
	if strings.TrimSpace(p.Reason) == "" {
		return "reason is required", ErrValidationFailed
	}

	return "", nil
}

func requireClubName(p Payload) (string, error) {
	if strings.TrimSpace(p.ClubName) == "" {
		return "club name is required", ErrValidationFailed
	}

	return "", nil
}

func requireDocument(p Payload) (string, error) {
	if strings.TrimSpace(p.DocumentRef) == "" {
		return "document reference is required", ErrValidationFailed
	}

	return "", nil
}

func requireScheduleWindow(p Payload) (string, error) {
	if p.StartsAt == nil || p.EndsAt == nil {
		return "defense start and end are required", ErrValidationFailed
	}

	if !p.StartsAt.Before(*p.EndsAt) {
		return "defense must start before it ends", ErrValidationFailed
	}

	return "", nil
}

func requireElapsedDefense(p Payload) (string, error) {
	if !p.Result.Valid() {
		return "result must be PASSED or FAILED", ErrValidationFailed
	}

	if p.Result == models.DefenseFailed && strings.TrimSpace(p.Feedback) == "" && strings.TrimSpace(p.Reason) == "" {
		return "a failed defense requires feedback", ErrValidationFailed
	}

	if p.DefenseEndsAt == nil {
		return "no approved defense schedule", ErrValidationFailed
	}

	if p.Now.Before(*p.DefenseEndsAt) {
		return "defense ends at " + p.DefenseEndsAt.UTC().Format(time.RFC3339), ErrDefenseNotFinished
	}

	return "", nil
}

func defenseOutcome(p Payload) models.Status {
	if p.Result == models.DefenseFailed {
		return models.StatusRejected
	}

	return models.StatusDefenseCompleted
}

// Transitions returns the table in definition order.
func Transitions() []TransitionDef {
	defs := make([]TransitionDef, 0, len(order))

	for _, e := range order {
		r := table[e]
		to := []models.Status{r.next}

		if e.action == ActionCompleteDefense {
			to = append(to, models.StatusRejected)
		}

		defs = append(defs, TransitionDef{
			From:     e.from,
			Action:   e.action,
			Role:     r.role.String(),
			To:       to,
			Artifact: r.artifact,
		})
	}

	return defs
}

// Actions returns the distinct action names of the table.
func Actions() []Action {
	seen := make(map[Action]bool)
	actions := make([]Action, 0, len(order))

	for _, e := range order {
		if !seen[e.action] {
			seen[e.action] = true
			actions = append(actions, e.action)
		}
	}

	return actions
}

// ParseAction validates an action name against the table.
func ParseAction(name string) (Action, bool) {
	for _, action := range Actions() {
		if string(action) == name {
			return action, true
		}
	}

	return "", false
}

// ArtifactFor returns the artifact kind created by an action, if any.
func ArtifactFor(action Action) models.ArtifactKind {
	for _, e := range order {
		if e.action == action {
			return table[e].artifact
		}
	}

	return ""
}

// SourceOf returns the status an action leaves from when the table has
// exactly one such status.
func SourceOf(action Action) (models.Status, bool) {
	var from models.Status

	for _, e := range order {
		if e.action != action {
			continue
		}

		if from != "" {
			return "", false
		}

		from = e.from
	}

	return from, from != ""
}
