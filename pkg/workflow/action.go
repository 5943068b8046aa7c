package workflow

import (
	"github.com/dukex/clubflow/pkg/models"
)

// Action names a transition of the establishment lifecycle.
type Action string

const (
	ActionReceive                Action = "receive"
	ActionConfirmContact         Action = "confirmContact"
	ActionRejectContact          Action = "rejectContact"
	ActionRequestNameRevision    Action = "requestNameRevision"
	ActionResubmitName           Action = "resubmitName"
	ActionRequestProposal        Action = "requestProposal"
	ActionSubmitProposal         Action = "submitProposal"
	ActionApproveProposal        Action = "approveProposal"
	ActionRejectProposal         Action = "rejectProposal"
	ActionProposeDefenseSchedule Action = "proposeDefenseSchedule"
	ActionApproveDefenseSchedule Action = "approveDefenseSchedule"
	ActionRejectDefenseSchedule  Action = "rejectDefenseSchedule"
	ActionCompleteDefense        Action = "completeDefense"
	ActionSubmitFinalForm        Action = "submitFinalForm"
	ActionApproveFinalForm       Action = "approveFinalForm"
)

// ActorRole is the set of roles an actor holds with respect to one request.
type ActorRole uint8

const (
	// RoleStaff is held by any actor with the STAFF global role.
	RoleStaff ActorRole = 1 << iota
	// RoleRequester is held by the actor who submitted the request.
	RoleRequester
)

// Has reports whether every role in want is present.
func (r ActorRole) Has(want ActorRole) bool {
	return want != 0 && r&want == want
}

func (r ActorRole) String() string {
	switch r {
	case RoleStaff:
		return "STAFF"
	case RoleRequester:
		return "REQUESTER"
	case RoleStaff | RoleRequester:
		return "STAFF|REQUESTER"
	default:
		return "NONE"
	}
}

// RolesOf derives the roles an actor holds on a request.
func RolesOf(actor models.ActorContext, request *models.EstablishmentRequest) ActorRole {
	var roles ActorRole

	if actor.IsStaff() {
		roles |= RoleStaff
	}

	if request != nil && actor.ID != "" && actor.ID == request.RequesterID {
		roles |= RoleRequester
	}

	return roles
}
