package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobmatch-workers/internal/common/errors"
)

// ApplicationState is the lifecycle state of an application record.
type ApplicationState string

const (
	StateCandidate         ApplicationState = "CANDIDATE"
	StatePendingSubmission ApplicationState = "PENDING_SUBMISSION"
	StateSubmitted         ApplicationState = "SUBMITTED"
	StateFailed            ApplicationState = "FAILED"
	StateWithdrawn         ApplicationState = "WITHDRAWN"
)

// ParseApplicationState converts a stored string into an ApplicationState.
func ParseApplicationState(s string) (ApplicationState, error) {
	switch ApplicationState(strings.ToUpper(strings.TrimSpace(s))) {
	case StateCandidate:
		return StateCandidate, nil
	case StatePendingSubmission:
		return StatePendingSubmission, nil
	case StateSubmitted:
		return StateSubmitted, nil
	case StateFailed:
		return StateFailed, nil
	case StateWithdrawn:
		return StateWithdrawn, nil
	default:
		return "", errors.NewValidationFailedError(fmt.Sprintf("unknown application state: %q", s))
	}
}

// IsTerminal reports whether no further transitions are possible.
// WITHDRAWN is the only terminal state; FAILED and SUBMITTED records can
// still be withdrawn.
func (s ApplicationState) IsTerminal() bool {
	return s == StateWithdrawn
}

// OutreachOutcome is the status of a single HR outreach attempt.
type OutreachOutcome string

const (
	OutreachPending OutreachOutcome = "pending"
	OutreachSent    OutreachOutcome = "sent"
	OutreachFailed  OutreachOutcome = "failed"
)

// OutreachAttempt is one HR outreach email attempt attached to a record.
// The attempt is persisted as pending before the work request is emitted, so
// a crash between emission and callback cannot lose it.
type OutreachAttempt struct {
	WorkID      string          `json:"workId"`
	RequestedAt time.Time       `json:"requestedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Outcome     OutreachOutcome `json:"outcome"`
	Reason      string          `json:"reason,omitempty"`
}

// ApplicationRecord tracks one (student, job) application through its
// lifecycle. The pair is unique; records are never deleted.
type ApplicationRecord struct {
	ID               string            `json:"id"`
	StudentID        string            `json:"studentId"`
	JobID            string            `json:"jobId"`
	State            ApplicationState  `json:"state"`
	CreatedAt        time.Time         `json:"createdAt"`
	TransitionedAt   time.Time         `json:"transitionedAt"`
	Version          int64             `json:"version"`
	AttemptCount     int               `json:"attemptCount"`
	SubmissionWorkID string            `json:"submissionWorkId,omitempty"`
	NextRetryAt      *time.Time        `json:"nextRetryAt,omitempty"`
	LastError        string            `json:"lastError,omitempty"`
	OutreachAttempts []OutreachAttempt `json:"outreachAttempts,omitempty"`
}

// NewApplicationRecord creates a fresh record in CANDIDATE.
func NewApplicationRecord(studentID, jobID string, now time.Time) (*ApplicationRecord, error) {
	if strings.TrimSpace(studentID) == "" || strings.TrimSpace(jobID) == "" {
		return nil, errors.NewValidationFailedError("student id and job id must not be empty")
	}

	return &ApplicationRecord{
		ID:             uuid.New().String(),
		StudentID:      studentID,
		JobID:          jobID,
		State:          StateCandidate,
		CreatedAt:      now,
		TransitionedAt: now,
		Version:        1,
	}, nil
}

// LastOutreachAttempt returns the most recent outreach attempt, or nil.
// Attempts are appended in RequestedAt order, so the last element wins.
func (r *ApplicationRecord) LastOutreachAttempt() *OutreachAttempt {
	if len(r.OutreachAttempts) == 0 {
		return nil
	}
	return &r.OutreachAttempts[len(r.OutreachAttempts)-1]
}

// OutreachAttemptCount returns the number of attempts made so far. Every
// recorded attempt counts against the cap, including failed deliveries.
func (r *ApplicationRecord) OutreachAttemptCount() int {
	return len(r.OutreachAttempts)
}
