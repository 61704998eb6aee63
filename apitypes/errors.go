package apitypes

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable, closed taxonomy of error codes surfaced by the
// platform. Each code surfaces at exactly one layer; see the doc comment on
// each constant for where it originates.
type ErrorCode string

const (
	// ErrValidation marks input shape/size violations (pipeline step 1).
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	// ErrQuotaExceeded marks a governance denial (pipeline step 2).
	ErrQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	// ErrModerationBlockedInput marks a pre-filter refusal (pipeline step 3).
	ErrModerationBlockedInput ErrorCode = "MODERATION_BLOCKED_INPUT"
	// ErrModerationBlockedOutput marks a post-filter refusal (pipeline step 5).
	ErrModerationBlockedOutput ErrorCode = "MODERATION_BLOCKED_OUTPUT"
	// ErrExecution marks an agent panic/error (pipeline step 4).
	ErrExecution ErrorCode = "EXECUTION_ERROR"
	// ErrTimeout marks a turn that exceeded its deadline.
	ErrTimeout ErrorCode = "TIMEOUT"
	// ErrCanceled marks cooperative cancellation.
	ErrCanceled ErrorCode = "CANCELED"
	// ErrAgentNotFound marks an unknown agent slug.
	ErrAgentNotFound ErrorCode = "AGENT_NOT_FOUND"
	// ErrSessionNotFound marks a failed session lookup.
	ErrSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// ErrInvalidParams marks a tool/connector schema mismatch.
	ErrInvalidParams ErrorCode = "INVALID_PARAMS"
	// ErrNotFound marks an unknown tool/connector slug.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrInvalidAction marks an unknown connector action.
	ErrInvalidAction ErrorCode = "INVALID_ACTION"
	// ErrNotConnected marks a connector invoked before connect succeeded.
	ErrNotConnected ErrorCode = "NOT_CONNECTED"
	// ErrConnectionFailed marks a failed connector connect() call.
	ErrConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrAuthFailed marks a connector authentication failure.
	ErrAuthFailed ErrorCode = "AUTH_FAILED"
	// ErrRateLimited marks a connector rate-limit rejection.
	ErrRateLimited ErrorCode = "RATE_LIMITED"
	// ErrExternalAPI marks an external service error surfaced by a connector.
	ErrExternalAPI ErrorCode = "EXTERNAL_API_ERROR"
	// ErrProcessing marks an uncaught exception inside tool/connector code.
	ErrProcessing ErrorCode = "PROCESSING_ERROR"
	// ErrFileNotFound marks a missing file referenced by a tool/connector.
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	// ErrCycleDetected marks a sub-agent call chain that re-entered a slug
	// already on the stack or reached the maximum call depth (see
	// DESIGN.md, resolved open question).
	ErrCycleDetected ErrorCode = "CYCLE_DETECTED"
)

// Error is the platform's standard error shape. It implements the error
// interface and Unwrap so collaborator errors compose with errors.Is/As.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// NewError constructs an Error with no wrapped cause.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an Error carrying cause as its Unwrap target.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// CodeOf extracts the ErrorCode from err if it is (or wraps) an *Error.
// Returns "" when err is nil or not a platform error.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
