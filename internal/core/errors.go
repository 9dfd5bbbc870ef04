package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures so the transport can pick a status.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindUpstream
	KindNotConfigured
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	case KindNotConfigured:
		return "not_configured"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is returned by ResponseService. Message is safe to show to clients;
// Err carries the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func upstreamError(err error) *Error {
	return &Error{Kind: KindUpstream, Message: "AI provider request failed", Err: err}
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// ErrNotConfigured is returned by generators that cannot reach a provider.
var ErrNotConfigured = &Error{
	Kind:    KindNotConfigured,
	Message: "AI features are currently disabled. Please configure GEMINI_API_KEY.",
}

// KindOf reports the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
