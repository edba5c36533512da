package locator

import (
	"errors"

	"github.com/benmeehan/locator-agent/pkg/location"
)

// ErrorKind classifies why a lookup failed.
type ErrorKind int

const (
	// PermissionDenied means the fine location precondition did not hold.
	PermissionDenied ErrorKind = iota + 1
	// Timeout means no fix arrived within the overall budget.
	Timeout
	// ProviderError means the primary provider reported a hard error.
	ProviderError
	// LocationUnavailable means the fallback provider was exhausted without a fix.
	LocationUnavailable
	// NotAvailable means the capability probe found no usable provider at startup.
	NotAvailable
)

func (k ErrorKind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case Timeout:
		return "timeout"
	case ProviderError:
		return "provider_error"
	case LocationUnavailable:
		return "location_unavailable"
	case NotAvailable:
		return "not_available"
	default:
		return "unknown"
	}
}

// Error is the failure half of an Outcome.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrTimeout) works
// regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrPermissionDenied    = &Error{Kind: PermissionDenied}
	ErrTimeout             = &Error{Kind: Timeout}
	ErrProviderError       = &Error{Kind: ProviderError}
	ErrLocationUnavailable = &Error{Kind: LocationUnavailable}
	ErrNotAvailable        = &Error{Kind: NotAvailable}
)

// Outcome is the single result of a lookup: a fix when Err is nil, otherwise a *Error.
type Outcome struct {
	RequestID string
	Fix       location.Fix
	Err       error
}

// Success reports whether the outcome carries a fix.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// Kind returns the failure kind, or zero for a successful outcome.
func (o Outcome) Kind() ErrorKind {
	var e *Error
	if errors.As(o.Err, &e) {
		return e.Kind
	}
	return 0
}

func success(fix location.Fix) Outcome {
	return Outcome{Fix: fix}
}

func failure(kind ErrorKind, message string) Outcome {
	return Outcome{Err: &Error{Kind: kind, Message: message}}
}
