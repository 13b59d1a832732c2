// Package errors provides the standardized error taxonomy for the
// recommendation and application workflow engine, plus the conversion layer
// used when surfacing failures to the Camunda workflow engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// ErrCodeNotFound: unknown student or job. Caller's fault, surfaced as a
	// client error, never retried.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeAlreadyExists: duplicate apply for a (student, job) pair. Not a
	// failure; the existing record is returned to the caller.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// ErrCodeInvalidTransition: illegal state-machine transition attempted.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeOrchestratorUnavailable: work submission failed to enqueue.
	// Retried locally with backoff, capped, then the record lands in FAILED.
	ErrCodeOrchestratorUnavailable ErrorCode = "ORCHESTRATOR_UNAVAILABLE"

	// ErrCodeCallbackAfterTerminal: late callback on a withdrawn or terminal
	// record. Logged and swallowed, never propagated.
	ErrCodeCallbackAfterTerminal ErrorCode = "CALLBACK_AFTER_TERMINAL"

	// ErrCodeVersionConflict: optimistic save lost the compare-and-swap race.
	// Internal; the engine reloads and reapplies under the pair lock.
	ErrCodeVersionConflict ErrorCode = "VERSION_CONFLICT"

	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeQueryFailed         ErrorCode = "QUERY_FAILED"
	ErrCodeSearchFailed        ErrorCode = "SEARCH_FAILED"
	ErrCodeOutreachSendFailed  ErrorCode = "OUTREACH_SEND_FAILED"
	ErrCodeNotifySendFailed    ErrorCode = "NOTIFY_SEND_FAILED"
	ErrCodeSubmissionExhausted ErrorCode = "SUBMISSION_EXHAUSTED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is lets errors.Is match two StandardErrors by code.
func (e *StandardError) Is(target error) bool {
	var se *StandardError
	if errors.As(target, &se) {
		return e.Code == se.Code
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or "" when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// --- Constructors ---

// NewNotFoundError creates a non-retryable lookup error.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyExistsError marks a duplicate apply. Callers treat it as an
// idempotent hit, not a failure.
func NewAlreadyExistsError(studentID, jobID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyExists,
		Message:   "application already exists for pair",
		Details:   fmt.Sprintf("studentId: %s, jobId: %s", studentID, jobID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError creates a non-retryable state-machine error.
func NewInvalidTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "illegal application state transition",
		Details:   fmt.Sprintf("%s -> %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOrchestratorUnavailableError creates a retryable enqueue error.
func NewOrchestratorUnavailableError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOrchestratorUnavailable,
		Message:   "task orchestrator rejected work request",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCallbackAfterTerminalError marks a late callback. Logged and swallowed.
func NewCallbackAfterTerminalError(workID, state string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCallbackAfterTerminal,
		Message:   "callback arrived after terminal state",
		Details:   fmt.Sprintf("workId: %s, state: %s", workID, state),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewVersionConflictError marks a lost optimistic-save race.
func NewVersionConflictError(studentID, jobID string, version int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeVersionConflict,
		Message:   "record version conflict on save",
		Details:   fmt.Sprintf("studentId: %s, jobId: %s, version: %d", studentID, jobID, version),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable input validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryFailedError creates a retryable database error.
func NewQueryFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryFailed,
		Message:   "database query failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchFailedError creates a retryable posting-index error.
func NewSearchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchFailed,
		Message:   "posting index query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOutreachSendFailedError creates a retryable email delivery error.
func NewOutreachSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOutreachSendFailed,
		Message:   "outreach email delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotifySendFailedError creates a retryable notification error.
func NewNotifySendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotifySendFailed,
		Message:   "status notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionExhaustedError records the terminal FAILED reason.
func NewSubmissionExhaustedError(attempts int, lastReason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionExhausted,
		Message:   "submission retries exhausted",
		Details:   fmt.Sprintf("attempts: %d, lastReason: %s", attempts, lastReason),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// --- BPMN integration ---

// BPMNError is the shape thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeQueryFailed,
		ErrCodeSearchFailed,
		ErrCodeOutreachSendFailed,
		ErrCodeNotifySendFailed,
		ErrCodeOrchestratorUnavailable:
		return 3 // retryable technical errors

	case ErrCodeVersionConflict:
		return 1 // one reload-and-reapply is enough under the pair lock

	default:
		return 0 // business errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}
