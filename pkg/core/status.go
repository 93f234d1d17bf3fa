// Package core provides the execution model types for testbridge-runner.
package core

// TestStatus represents the outcome of a flow execution.
type TestStatus string

// TestStatus values.
//
// A flow is failed when an action raised before the flow finished,
// error when an exception escaped the adapter's own handling, skipped
// when it never ran, and passed otherwise.
const (
	StatusPassed  TestStatus = "passed"
	StatusFailed  TestStatus = "failed"
	StatusSkipped TestStatus = "skipped"
	StatusError   TestStatus = "error"
)

// IsTerminal returns true if the status is a final state.
func (s TestStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped, StatusError:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success.
func (s TestStatus) IsSuccess() bool {
	return s == StatusPassed
}

// ErrorCategory classifies failures for debugging and propagation policy.
type ErrorCategory int

// Error categories. Only initialization errors are fatal to a whole
// strategy run; everything else degrades into a result entry.
const (
	ErrCategoryNone           ErrorCategory = iota
	ErrCategoryInitialization               // Backend unreachable or misconfigured
	ErrCategoryElement                      // Every selector strategy exhausted
	ErrCategoryAction                       // A step-level action failed
	ErrCategoryAdapter                      // Error escaped the adapter's own handling
	ErrCategoryArtifact                     // Screenshot/video capture or copy failed
	ErrCategoryCleanup                      // Resource release failed
)

// String returns the string representation of ErrorCategory.
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryInitialization:
		return "initialization"
	case ErrCategoryElement:
		return "element"
	case ErrCategoryAction:
		return "action"
	case ErrCategoryAdapter:
		return "adapter"
	case ErrCategoryArtifact:
		return "artifact"
	case ErrCategoryCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}
