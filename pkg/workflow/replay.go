package workflow

import (
	"fmt"

	"github.com/dukex/clubflow/pkg/models"
)

// Replay folds a request's history over the transition table starting from
// SUBMITTED and returns the status it arrives at. Role and payload checks
// were enforced when each entry was committed and are not repeated; the
// recorded defense result still selects the completeDefense outcome.
func Replay(history []*models.WorkflowHistoryEntry) (models.Status, error) {
	status := models.StatusSubmitted

	for i, entry := range history {
		if entry.FromStatus != "" && entry.FromStatus != status {
			return status, fmt.Errorf("%w: entry %d starts from %s, expected %s", ErrHistoryMismatch, i, entry.FromStatus, status)
		}

		action := Action(entry.Action)

		r, ok := table[edge{from: status, action: action}]
		if !ok {
			return status, fmt.Errorf("%w: entry %d: %v", ErrHistoryMismatch, i, rejection(status, action, ErrInvalidTransition, ""))
		}

		next := r.next
		if r.resolve != nil {
			next = r.resolve(Payload{Result: entry.Result})
		}

		if entry.ToStatus != "" && entry.ToStatus != next {
			return status, fmt.Errorf("%w: entry %d ends at %s, table gives %s", ErrHistoryMismatch, i, entry.ToStatus, next)
		}

		status = next
	}

	return status, nil
}
