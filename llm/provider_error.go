package llm

import (
	"errors"
	"fmt"
)

// ProviderErrorKind classifies provider failures into a small set of
// categories suitable for retry and UX decisions.
type ProviderErrorKind string

const (
	ProviderErrorKindAuth           ProviderErrorKind = "auth"
	ProviderErrorKindInvalidRequest ProviderErrorKind = "invalid_request"
	ProviderErrorKindRateLimited    ProviderErrorKind = "rate_limited"
	ProviderErrorKindContextLength  ProviderErrorKind = "context_length"
	ProviderErrorKindUnavailable    ProviderErrorKind = "unavailable"
	ProviderErrorKindUnknown        ProviderErrorKind = "unknown"
)

// ProviderError describes a failure returned by a model provider. It crosses
// package boundaries so action.RetryPolicy can decide retryable vs.
// permanent without understanding any provider's wire format.
type ProviderError struct {
	provider  string
	operation string
	http      int
	kind      ProviderErrorKind
	code      string
	message   string
	requestID string
	retryable bool
	cause     error
}

// NewProviderError constructs a ProviderError. provider and kind are required.
func NewProviderError(provider, operation string, httpStatus int, kind ProviderErrorKind, code, message, requestID string, retryable bool, cause error) *ProviderError {
	if provider == "" {
		panic("llm: provider is required")
	}
	if kind == "" {
		panic("llm: provider error kind is required")
	}
	return &ProviderError{
		provider:  provider,
		operation: operation,
		http:      httpStatus,
		kind:      kind,
		code:      code,
		message:   message,
		requestID: requestID,
		retryable: retryable,
		cause:     cause,
	}
}

func (e *ProviderError) Provider() string          { return e.provider }
func (e *ProviderError) Operation() string         { return e.operation }
func (e *ProviderError) HTTPStatus() int           { return e.http }
func (e *ProviderError) Kind() ProviderErrorKind    { return e.kind }
func (e *ProviderError) Code() string              { return e.code }
func (e *ProviderError) Message() string           { return e.message }
func (e *ProviderError) RequestID() string         { return e.requestID }
func (e *ProviderError) Retryable() bool           { return e.retryable }

func (e *ProviderError) Error() string {
	op := e.operation
	if op == "" {
		op = "request"
	}
	status := ""
	if e.http > 0 {
		status = fmt.Sprintf("%d ", e.http)
	}
	code := ""
	if e.code != "" {
		code = e.code + ": "
	}
	msg := e.message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if msg == "" {
		msg = "provider error"
	}
	return fmt.Sprintf("%s %s %s(%s): %s", e.provider, e.kind, status, op, code+msg)
}

// Unwrap returns the underlying cause to preserve the original error chain.
func (e *ProviderError) Unwrap() error { return e.cause }

// AsProviderError returns the first ProviderError in err's chain, if any.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ErrRateLimited is a sentinel callers can match with errors.Is when they
// only care that the call was throttled, not the full ProviderError detail.
var ErrRateLimited = errors.New("llm: rate limited")

// CallFailed wraps any non-ProviderError failure from a SingleLlmCaller so
// the tool loop's "tool loop: llm call failed" wrapping stays uniform across
// providers.
type CallFailed struct {
	Provider string
	Cause    error
}

func (e *CallFailed) Error() string {
	return fmt.Sprintf("llm: %s call failed: %v", e.Provider, e.Cause)
}

func (e *CallFailed) Unwrap() error { return e.Cause }
