package engine

import (
	"errors"
	"fmt"
)

// Stable machine-readable codes for workflow failures. Callers branch on the
// code, humans read the message.
const (
	CodeItemUnavailable   = "item_unavailable"
	CodeUnknownStatus     = "unknown_status"
	CodeApproverRequired  = "approver_required"
	CodeInvalidTransition = "invalid_transition"
	CodeAlreadyDecided    = "already_decided"
	CodeLockTimeout       = "lock_timeout"
	CodeDocumentNotFound  = "document_not_found"
	CodeBadInput          = "bad_request"
)

// WorkflowError is a rejected or conflicting workflow operation. No state is
// mutated when one is returned.
type WorkflowError struct {
	Code    string
	Message string
}

func (e *WorkflowError) Error() string { return e.Message }

// NewError builds a coded workflow error.
func NewError(code, format string, args ...any) *WorkflowError {
	return &WorkflowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the workflow code from err, or "" for infrastructure errors.
func CodeOf(err error) string {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// Retryable reports whether the failure is transient and safe to retry with
// backoff. State-conflict codes are not retryable blindly: the caller must
// re-fetch current state first.
func Retryable(err error) bool {
	return CodeOf(err) == CodeLockTimeout
}
