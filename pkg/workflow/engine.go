// Package workflow implements the establishment lifecycle as a closed
// transition table. Decide is a pure function: it never performs I/O, so
// callers supply the clock and any artifact data the table depends on.
package workflow

import (
	"github.com/dukex/clubflow/pkg/catalog"
	"github.com/dukex/clubflow/pkg/models"
)

// Decision is a validated transition ready to be applied by the store.
type Decision struct {
	Action    Action
	From      models.Status
	Next      models.Status
	StepCode  string
	Artifact  models.ArtifactKind
	Provision bool
}

// Decide validates action against the transition table and returns the
// resulting status and history step code.
func Decide(current models.Status, action Action, roles ActorRole, payload Payload) (Decision, error) {
	r, ok := table[edge{from: current, action: action}]
	if !ok {
		return Decision{}, rejection(current, action, ErrInvalidTransition, "")
	}

	if !roles.Has(r.role) {
		return Decision{}, rejection(current, action, ErrForbidden, "requires "+r.role.String())
	}

	if r.check != nil {
		if detail, err := r.check(payload); err != nil {
			return Decision{}, rejection(current, action, err, detail)
		}
	}

	next := r.next
	if r.resolve != nil {
		next = r.resolve(payload)
	}

	return Decision{
		Action:    action,
		From:      current,
		Next:      next,
		StepCode:  stepCode(current, next),
		Artifact:  r.artifact,
		Provision: r.provision && next == models.StatusApproved,
	}, nil
}

// stepCode is the step of the resulting status, or the step where the
// request stood when it was rejected.
func stepCode(from, next models.Status) string {
	if step, ok := catalog.ForStatus(next); ok {
		return step.Code
	}

	return catalog.CurrentStep(from, nil).Code
}

// Allowed lists the actions the roles may attempt from status, in table order.
// Payload requirements are not checked.
func Allowed(status models.Status, roles ActorRole) []Action {
	actions := make([]Action, 0)

	for _, e := range order {
		if e.from == status && roles.Has(table[e].role) {
			actions = append(actions, e.action)
		}
	}

	return actions
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status models.Status) bool {
	for _, e := range order {
		if e.from == status {
			return false
		}
	}

	return true
}
