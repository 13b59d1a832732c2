// Package lifecycle implements the application state machine: record
// creation, submission work requests, completion callbacks, withdrawal and
// the stale-submission sweeper.
package lifecycle

import (
	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/models"
)

// validTransitions defines the allowed application state graph:
//
//	CANDIDATE ──────────→ PENDING_SUBMISSION ──→ SUBMITTED
//	    │                     │        │             │
//	    │                     │(retry) └──→ FAILED   │
//	    │                     │               │      │
//	    └─────────→ WITHDRAWN ←───────────────┴──────┘
//
// WITHDRAWN is terminal. PENDING_SUBMISSION → PENDING_SUBMISSION covers the
// retry-after-failed-callback loop.
var validTransitions = map[models.ApplicationState][]models.ApplicationState{
	models.StateCandidate: {
		models.StatePendingSubmission,
		models.StateWithdrawn,
	},
	models.StatePendingSubmission: {
		models.StatePendingSubmission,
		models.StateSubmitted,
		models.StateFailed,
		models.StateWithdrawn,
	},
	models.StateSubmitted: {
		models.StateWithdrawn,
	},
	models.StateFailed: {
		models.StateWithdrawn,
	},
	models.StateWithdrawn: {},
}

// IsTransitionAllowed reports whether from → to is a legal transition.
func IsTransitionAllowed(from, to models.ApplicationState) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// applyTransition moves the record to the target state or fails with
// INVALID_TRANSITION.
func applyTransition(record *models.ApplicationRecord, to models.ApplicationState) error {
	if !IsTransitionAllowed(record.State, to) {
		return errors.NewInvalidTransitionError(string(record.State), string(to))
	}
	record.State = to
	return nil
}
