package core

import (
	"fmt"
	"strings"
)

// Kind classifies an invocation failure. The set is closed: every failure
// the engine reports carries exactly one of these kinds.
type Kind string

const (
	// KindUnknownTool is returned when resolution fails. It carries no detail.
	KindUnknownTool Kind = "unknown_tool"

	// KindBadArgs is returned when raw arguments cannot be parsed or coerced.
	KindBadArgs Kind = "bad_args"

	// KindGuardrail is returned when an input or output guard blocks the call.
	KindGuardrail Kind = "guardrail"

	// KindUserError is returned for tool-side input rejection. Never retried.
	KindUserError Kind = "user_error"

	// KindToolError is returned for tool failures, timeouts, and reentrancy.
	KindToolError Kind = "tool_error"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// InvokeError is a structured invocation failure that flows through the
// pipeline without losing its kind or retryability.
type InvokeError struct {
	Kind      Kind
	Detail    string
	Retryable bool
	Cause     error
}

// Error formats the failure as "<kind>:<detail>", or the bare kind when
// there is no detail (the unknown_tool case).
func (e *InvokeError) Error() string {
	if e == nil {
		return ""
	}
	detail := strings.TrimSpace(e.Detail)
	if detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s:%s", e.Kind, detail)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *InvokeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewInvokeError builds an InvokeError, defaulting the detail to the cause's
// message when empty.
func NewInvokeError(kind Kind, detail string, retryable bool, cause error) *InvokeError {
	clean := strings.TrimSpace(detail)
	if clean == "" && cause != nil {
		clean = cause.Error()
	}
	return &InvokeError{
		Kind:      kind,
		Detail:    clean,
		Retryable: retryable,
		Cause:     cause,
	}
}

// UserError is raised by tool callables to reject invalid input values.
// It classifies as user_error and is never retried.
type UserError struct {
	Msg   string
	Cause error
}

// Error returns the rejection message.
func (e *UserError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "invalid input"
}

// Unwrap exposes the wrapped cause.
func (e *UserError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewUserError builds a UserError with a formatted message.
func NewUserError(format string, args ...any) *UserError {
	return &UserError{Msg: fmt.Sprintf(format, args...)}
}

// RetryableError is raised by tool callables for transient failures that the
// engine may retry within the tool's retry budget.
type RetryableError struct {
	Msg   string
	Cause error
}

// Error returns the failure message.
func (e *RetryableError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "transient tool failure"
}

// Unwrap exposes the wrapped cause.
func (e *RetryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewRetryableError builds a RetryableError with a formatted message.
func NewRetryableError(format string, args ...any) *RetryableError {
	return &RetryableError{Msg: fmt.Sprintf(format, args...)}
}
