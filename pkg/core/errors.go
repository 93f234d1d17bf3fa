package core

import (
	"fmt"

	"github.com/testbridge-dev/testbridge-runner/pkg/flow"
)

// ExecutionError is a structured error with a category and a
// machine-readable code.
type ExecutionError struct {
	Category ErrorCategory
	Code     string // Machine-readable code: element_not_found, init_failed, etc.
	Message  string // Human-readable message
	Cause    error  // Underlying error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches by category and code so predefined errors work as
// errors.Is targets across wrapping.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message.
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Cause:    e.Cause,
	}
}

// Predefined errors.
var (
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "element_not_found",
		Message:  "element not found by any selector strategy",
	}
	ErrInitialization = &ExecutionError{
		Category: ErrCategoryInitialization,
		Code:     "init_failed",
		Message:  "backend initialization failed",
	}
	ErrNotInitialized = &ExecutionError{
		Category: ErrCategoryAdapter,
		Code:     "not_initialized",
		Message:  "adapter is not initialized",
	}
	ErrCleanup = &ExecutionError{
		Category: ErrCategoryCleanup,
		Code:     "cleanup_failed",
		Message:  "failed to release backend resources",
	}
)

// ActionError wraps the failure of one action with its 1-based step
// index. It terminates the owning flow with status failed.
type ActionError struct {
	StepIndex int // 1-based
	Kind      flow.ActionKind
	Target    string
	Cause     error
}

// NewActionError creates an ActionError for the given step position.
func NewActionError(stepIndex int, action flow.Action, cause error) *ActionError {
	return &ActionError{
		StepIndex: stepIndex,
		Kind:      action.Kind,
		Target:    action.Target,
		Cause:     cause,
	}
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("step %d (%s %q) failed: %v", e.StepIndex, e.Kind, e.Target, e.Cause)
	}
	return fmt.Sprintf("step %d (%s) failed: %v", e.StepIndex, e.Kind, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ActionError) Unwrap() error {
	return e.Cause
}
