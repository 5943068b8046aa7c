// Package reconciler keeps a consumer's view of establishment requests in
// line with the server. Notifications only say what went stale; every
// snapshot comes from a fresh read.
package reconciler

import (
	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/notification"
	"github.com/dukex/clubflow/pkg/workflow"
)

// Invalidation describes which cached views a message made stale.
type Invalidation struct {
	RefetchEntity string
	RefetchList   bool
}

// Empty reports whether nothing needs to be fetched.
func (i Invalidation) Empty() bool {
	return i.RefetchEntity == "" && !i.RefetchList
}

var informational = map[string]bool{
	notification.ActionRequestSubmitted: true,
	notification.ActionDefenseDue:       true,
}

var statusChanging = map[string]bool{
	notification.ActionProposalSubmitted:       true,
	notification.ActionDefenseScheduleProposed: true,
	notification.ActionFinalFormSubmitted:      true,
	notification.ActionNameRevisionSubmitted:   true,
}

func init() {
	for _, action := range workflow.Actions() {
		statusChanging[string(action)] = true
	}
}

// Classify maps a message to the invalidation it requires. It looks only at
// the action and the request id; the rest of the payload is ignored.
func Classify(msg models.NotificationMessage) Invalidation {
	switch {
	case statusChanging[msg.Action]:
		return Invalidation{RefetchEntity: msg.Payload.RequestID, RefetchList: true}
	case informational[msg.Action]:
		return Invalidation{RefetchList: true}
	default:
		return Invalidation{}
	}
}
