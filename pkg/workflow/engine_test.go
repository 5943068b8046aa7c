package workflow

import (
	"testing"
	"time"

	"github.com/dukex/clubflow/pkg/catalog"
	"github.com/dukex/clubflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

// validPayload satisfies every field requirement of the table.
func validPayload() Payload {
	starts := now.Add(-3 * time.Hour)
	ends := now.Add(-time.Hour)

	return Payload{
		Comment:       "looks good",
		Reason:        "missing signatures",
		Result:        models.DefensePassed,
		ClubName:      "Robotics Club",
		DocumentRef:   "doc://proposal/1",
		StartsAt:      &starts,
		EndsAt:        &ends,
		DefenseEndsAt: &ends,
		Now:           now,
	}
}

type expectedEdge struct {
	role ActorRole
	next models.Status
}

// expectedTable is written out independently of table.go.
var expectedTable = map[models.Status]map[Action]expectedEdge{
	models.StatusSubmitted: {
		ActionReceive: {RoleStaff, models.StatusContactConfirmationPending},
	},
	models.StatusContactConfirmationPending: {
		ActionConfirmContact: {RoleStaff, models.StatusContactConfirmed},
		ActionRejectContact:  {RoleStaff, models.StatusContactRejected},
	},
	models.StatusContactConfirmed: {
		ActionRequestNameRevision: {RoleStaff, models.StatusNameRevisionRequired},
		ActionRequestProposal:     {RoleStaff, models.StatusProposalRequired},
	},
	models.StatusNameRevisionRequired: {
		ActionResubmitName: {RoleRequester, models.StatusContactConfirmed},
	},
	models.StatusProposalRequired: {
		ActionSubmitProposal: {RoleRequester, models.StatusProposalSubmitted},
	},
	models.StatusProposalSubmitted: {
		ActionApproveProposal: {RoleStaff, models.StatusProposalApproved},
		ActionRejectProposal:  {RoleStaff, models.StatusProposalRejected},
	},
	models.StatusProposalRejected: {
		ActionSubmitProposal: {RoleRequester, models.StatusProposalSubmitted},
	},
	models.StatusProposalApproved: {
		ActionProposeDefenseSchedule: {RoleRequester, models.StatusDefenseScheduleProposed},
	},
	models.StatusDefenseScheduleProposed: {
		ActionApproveDefenseSchedule: {RoleStaff, models.StatusDefenseScheduleApproved},
		ActionRejectDefenseSchedule:  {RoleStaff, models.StatusDefenseScheduleRejected},
	},
	models.StatusDefenseScheduleRejected: {
		ActionProposeDefenseSchedule: {RoleRequester, models.StatusDefenseScheduleProposed},
	},
	models.StatusDefenseScheduleApproved: {
		ActionCompleteDefense: {RoleStaff, models.StatusDefenseCompleted},
	},
	models.StatusDefenseCompleted: {
		ActionSubmitFinalForm: {RoleRequester, models.StatusFinalFormSubmitted},
	},
	models.StatusFinalFormSubmitted: {
		ActionApproveFinalForm: {RoleStaff, models.StatusApproved},
	},
}

func TestDecide_ExhaustiveTable(t *testing.T) {
	for _, status := range models.Statuses() {
		for _, action := range Actions() {
			want, defined := expectedTable[status][action]

			decision, err := Decide(status, action, RoleStaff|RoleRequester, validPayload())
			if !defined {
				require.Error(t, err, "%s + %s", status, action)
				assert.True(t, IsInvalidTransition(err), "%s + %s: %v", status, action, err)

				continue
			}

			require.NoError(t, err, "%s + %s", status, action)
			assert.Equal(t, want.next, decision.Next, "%s + %s", status, action)
			assert.Equal(t, status, decision.From)
			assert.Equal(t, action, decision.Action)
		}
	}
}

func TestDecide_RoleGating(t *testing.T) {
	for status, actions := range expectedTable {
		for action, want := range actions {
			other := RoleStaff
			if want.role == RoleStaff {
				other = RoleRequester
			}

			_, err := Decide(status, action, other, validPayload())
			require.Error(t, err)
			assert.True(t, IsForbidden(err), "%s + %s as %s: %v", status, action, other, err)

			_, err = Decide(status, action, 0, validPayload())
			assert.True(t, IsForbidden(err), "%s + %s without roles", status, action)

			_, err = Decide(status, action, want.role, validPayload())
			assert.NoError(t, err, "%s + %s as %s", status, action, want.role)
		}
	}
}

func TestDecide_UnknownActionIsInvalidTransition(t *testing.T) {
	_, err := Decide(models.StatusSubmitted, Action("teleport"), RoleStaff, validPayload())
	assert.True(t, IsInvalidTransition(err))

	_, err = Decide(models.StatusApproved, ActionApproveFinalForm, RoleStaff, validPayload())
	assert.True(t, IsInvalidTransition(err))
}

func TestDecide_Receive(t *testing.T) {
	decision, err := Decide(models.StatusSubmitted, ActionReceive, RoleStaff, Payload{Now: now})
	require.NoError(t, err)

	assert.Equal(t, models.StatusContactConfirmationPending, decision.Next)
	assert.Equal(t, catalog.StepRequestReview, decision.StepCode)
}

func TestDecide_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		status models.Status
		action Action
		role   ActorRole
		mutate func(*Payload)
	}{
		{"reject contact without reason", models.StatusContactConfirmationPending, ActionRejectContact, RoleStaff, func(p *Payload) { p.Reason = "" }},
		{"reject proposal with blank reason", models.StatusProposalSubmitted, ActionRejectProposal, RoleStaff, func(p *Payload) { p.Reason = "   " }},
		{"reject schedule without reason", models.StatusDefenseScheduleProposed, ActionRejectDefenseSchedule, RoleStaff, func(p *Payload) { p.Reason = "" }},
		{"resubmit name without name", models.StatusNameRevisionRequired, ActionResubmitName, RoleRequester, func(p *Payload) { p.ClubName = "" }},
		{"submit proposal without document", models.StatusProposalRequired, ActionSubmitProposal, RoleRequester, func(p *Payload) { p.DocumentRef = "" }},
		{"submit final form without document", models.StatusDefenseCompleted, ActionSubmitFinalForm, RoleRequester, func(p *Payload) { p.DocumentRef = "" }},
		{"schedule without end", models.StatusProposalApproved, ActionProposeDefenseSchedule, RoleRequester, func(p *Payload) { p.EndsAt = nil }},
		{"schedule ending before start", models.StatusProposalApproved, ActionProposeDefenseSchedule, RoleRequester, func(p *Payload) {
			ends := p.StartsAt.Add(-time.Minute)
			p.EndsAt = &ends
		}},
		{"complete defense without result", models.StatusDefenseScheduleApproved, ActionCompleteDefense, RoleStaff, func(p *Payload) { p.Result = "" }},
		{"complete defense with unknown result", models.StatusDefenseScheduleApproved, ActionCompleteDefense, RoleStaff, func(p *Payload) { p.Result = "MAYBE" }},
		{"fail defense without feedback", models.StatusDefenseScheduleApproved, ActionCompleteDefense, RoleStaff, func(p *Payload) {
			p.Result = models.DefenseFailed
			p.Reason = ""
			p.Feedback = " "
		}},
		{"complete defense without schedule", models.StatusDefenseScheduleApproved, ActionCompleteDefense, RoleStaff, func(p *Payload) { p.DefenseEndsAt = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPayload()
			tt.mutate(&payload)

			_, err := Decide(tt.status, tt.action, tt.role, payload)
			require.Error(t, err)
			assert.True(t, IsValidationFailed(err), err.Error())
		})
	}
}

func TestDecide_RejectProposalWithoutReason(t *testing.T) {
	_, err := Decide(models.StatusProposalSubmitted, ActionRejectProposal, RoleStaff, Payload{Reason: "", Now: now})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, models.StatusProposalSubmitted, transitionErr.Status)
}

func TestDecide_DefenseNotFinished(t *testing.T) {
	ends := now.Add(2 * time.Hour)

	_, err := Decide(models.StatusDefenseScheduleApproved, ActionCompleteDefense, RoleStaff, Payload{
		Result:        models.DefensePassed,
		DefenseEndsAt: &ends,
		Now:           now,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDefenseNotFinished)
	assert.True(t, IsValidationFailed(err))
}

func TestDecide_DefenseEndingExactlyNowCanComplete(t *testing.T) {
	decision, err := Decide(models.StatusDefenseScheduleApproved, ActionCompleteDefense, RoleStaff, Payload{
		Result:        models.DefensePassed,
		DefenseEndsAt: &now,
		Now:           now,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDefenseCompleted, decision.Next)
	assert.Equal(t, catalog.StepFinalFormSubmission, decision.StepCode)
}

func TestDecide_FailedDefenseRejects(t *testing.T) {
	payload := validPayload()
	payload.Result = models.DefenseFailed

	decision, err := Decide(models.StatusDefenseScheduleApproved, ActionCompleteDefense, RoleStaff, payload)
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, decision.Next)
	assert.Equal(t, catalog.StepDefense, decision.StepCode, "rejection is recorded at the step where it happened")
}

func TestDecide_RejectContactStepCode(t *testing.T) {
	decision, err := Decide(models.StatusContactConfirmationPending, ActionRejectContact, RoleStaff, validPayload())
	require.NoError(t, err)
	assert.Equal(t, catalog.StepRequestReview, decision.StepCode)
}

func TestDecide_ArtifactsAndProvisioning(t *testing.T) {
	decision, err := Decide(models.StatusProposalRejected, ActionSubmitProposal, RoleRequester, validPayload())
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactProposal, decision.Artifact)

	decision, err = Decide(models.StatusProposalApproved, ActionProposeDefenseSchedule, RoleRequester, validPayload())
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactDefenseSchedule, decision.Artifact)

	decision, err = Decide(models.StatusFinalFormSubmitted, ActionApproveFinalForm, RoleStaff, validPayload())
	require.NoError(t, err)
	assert.True(t, decision.Provision)
	assert.Empty(t, decision.Artifact)
}

func TestAllowed(t *testing.T) {
	assert.Equal(t, []Action{ActionRequestNameRevision, ActionRequestProposal}, Allowed(models.StatusContactConfirmed, RoleStaff))
	assert.Empty(t, Allowed(models.StatusContactConfirmed, RoleRequester))
	assert.Equal(t, []Action{ActionSubmitProposal}, Allowed(models.StatusProposalRejected, RoleRequester))
	assert.Empty(t, Allowed(models.StatusApproved, RoleStaff|RoleRequester))
}

func TestIsTerminal_MatchesStatusModel(t *testing.T) {
	for _, status := range models.Statuses() {
		assert.Equal(t, status.Terminal(), IsTerminal(status), status)
	}
}

func TestTransitions_ListEveryEdge(t *testing.T) {
	count := 0
	for _, actions := range expectedTable {
		count += len(actions)
	}

	defs := Transitions()
	assert.Len(t, defs, count)

	for _, def := range defs {
		if def.Action == ActionCompleteDefense {
			assert.ElementsMatch(t, []models.Status{models.StatusDefenseCompleted, models.StatusRejected}, def.To)
		}
	}
}

func TestParseAction(t *testing.T) {
	action, ok := ParseAction("approveProposal")
	assert.True(t, ok)
	assert.Equal(t, ActionApproveProposal, action)

	_, ok = ParseAction("ApproveProposal")
	assert.False(t, ok)
}

func TestSourceOf(t *testing.T) {
	from, ok := SourceOf(ActionApproveProposal)
	assert.True(t, ok)
	assert.Equal(t, models.StatusProposalSubmitted, from)

	from, ok = SourceOf(ActionReceive)
	assert.True(t, ok)
	assert.Equal(t, models.StatusSubmitted, from)

	// Resubmissions leave from the required and the rejected status.
	_, ok = SourceOf(ActionSubmitProposal)
	assert.False(t, ok)

	_, ok = SourceOf(ActionProposeDefenseSchedule)
	assert.False(t, ok)

	_, ok = SourceOf(Action("teleport"))
	assert.False(t, ok)
}

func TestRolesOf(t *testing.T) {
	request := &models.EstablishmentRequest{RequesterID: "student-1"}

	assert.Equal(t, RoleStaff, RolesOf(models.ActorContext{ID: "staff-1", GlobalRole: models.GlobalRoleStaff}, request))
	assert.Equal(t, RoleRequester, RolesOf(models.ActorContext{ID: "student-1", GlobalRole: models.GlobalRoleStudent}, request))
	assert.Equal(t, ActorRole(0), RolesOf(models.ActorContext{ID: "student-2", GlobalRole: models.GlobalRoleStudent}, request))
	assert.Equal(t, RoleStaff|RoleRequester, RolesOf(models.ActorContext{ID: "student-1", GlobalRole: models.GlobalRoleStaff}, request))
}
