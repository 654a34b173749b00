// Package toolerrors provides structured error types for tool invocation
// failures. ToolError preserves error chains and supports errors.Is/As while
// staying JSON-serializable, so a tool result can carry a failure across a
// blackboard mirror or a durable workflow boundary.
package toolerrors

import (
	"errors"
	"fmt"
)

// RetryHint mirrors toolloop.RetryHint. toolerrors cannot import toolloop
// (tool imports toolerrors, and toolloop imports tool, so the reverse edge
// would cycle); toolloop instead converts this into its own RetryHint type
// when it finds one attached to a *ToolError in a tool call's error chain.
type RetryHint struct {
	Reason             string
	Tool               string
	RestrictToTool     bool
	MissingFields      []string
	ExampleInput       map[string]any
	PriorInput         map[string]any
	ClarifyingQuestion string
	Message            string
}

// ToolError represents a structured tool failure that preserves message and
// causal context while still implementing the standard error interface. Tool
// errors may be nested via Cause to retain diagnostics across retries.
type ToolError struct {
	// Message is the human-readable summary of the failure.
	Message string
	// Cause links to the underlying tool error, enabling error chains with errors.Is/As.
	Cause *ToolError `json:"cause,omitempty"`
	// Hint carries optional structured retry guidance; nil if none.
	Hint *RetryHint `json:"hint,omitempty"`
}

// New constructs a ToolError with the provided message.
func New(message string) *ToolError {
	if message == "" {
		message = "tool error"
	}
	return &ToolError{Message: message}
}

// NewWithCause constructs a ToolError that wraps an underlying error.
func NewWithCause(message string, cause error) *ToolError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &ToolError{
		Message: message,
		Cause:   FromError(cause),
	}
}

// FromError converts an arbitrary error into a ToolError chain. Returns nil
// for a nil input so callers can assign the result to an error-typed field
// unconditionally.
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{
		Message: err.Error(),
		Cause:   FromError(errors.Unwrap(err)),
	}
}

// Errorf formats according to a format specifier and returns a ToolError.
func Errorf(format string, args ...any) *ToolError {
	return New(fmt.Sprintf(format, args...))
}

// WithHint attaches a RetryHint to e, returning e for chaining.
func (e *ToolError) WithHint(hint *RetryHint) *ToolError {
	e.Hint = hint
	return e
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying tool error to support errors.Is/As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
