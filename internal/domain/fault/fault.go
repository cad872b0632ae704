// Package fault defines the closed set of failures the generation API can
// report. Every error that crosses the API boundary is one of these kinds;
// anything else is collapsed to KindUnexpected so internal details never
// reach the caller.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a failure class. The set is closed: handlers switch on it
// and map each kind to a fixed HTTP status and public message.
type Kind string

const (
	KindRateLimitExceeded     Kind = "rate_limit_exceeded"
	KindNoDescriptionProvided Kind = "no_description_provided"
	KindInvalidLicenseKey     Kind = "invalid_license_key"
	KindUserNotFound          Kind = "user_not_found"
	KindAPIKeyNotFound        Kind = "api_key_not_found"
	KindInvalidAPIKey         Kind = "invalid_api_key"
	KindProviderError         Kind = "provider_error"
	KindUnableToParse         Kind = "unable_to_parse_response"
	KindNoFunctionCall        Kind = "function_call_not_used"
	KindUnexpected            Kind = "unexpected"
)

// statusByKind is the canonical HTTP status mapping.
var statusByKind = map[Kind]int{
	KindRateLimitExceeded:     http.StatusTooManyRequests,
	KindNoDescriptionProvided: http.StatusBadRequest,
	KindInvalidLicenseKey:     http.StatusUnauthorized,
	KindUserNotFound:          http.StatusUnauthorized,
	KindAPIKeyNotFound:        http.StatusBadRequest,
	KindInvalidAPIKey:         http.StatusBadRequest,
	KindProviderError:         http.StatusBadGateway,
	KindUnableToParse:         http.StatusInternalServerError,
	KindNoFunctionCall:        http.StatusInternalServerError,
	KindUnexpected:            http.StatusInternalServerError,
}

// messageByKind is the public message per kind. These are what the plugin
// shows to the user, so they stay short and actionable.
var messageByKind = map[Kind]string{
	KindRateLimitExceeded:     "Rate limit exceeded",
	KindNoDescriptionProvided: "No diagram description provided",
	KindInvalidLicenseKey:     "Invalid license key",
	KindUserNotFound:          "User not found",
	KindAPIKeyNotFound:        "No API key registered for this provider",
	KindInvalidAPIKey:         "Invalid provider API key",
	KindProviderError:         "Model provider error",
	KindUnableToParse:         "Unable to parse model response",
	KindNoFunctionCall:        "Model failed to produce structured output",
	KindUnexpected:            "An unexpected error occurred",
}

// Fault is a typed failure carrying the HTTP status analog, a public
// message, and structured log context. The wrapped cause (if any) is only
// logged, never returned to the caller.
type Fault struct {
	Kind    Kind
	Context map[string]any
	cause   error
}

// New creates a Fault of the given kind.
func New(kind Kind) *Fault {
	return &Fault{Kind: kind}
}

// Wrap creates a Fault of the given kind with an underlying cause.
func Wrap(kind Kind, cause error) *Fault {
	return &Fault{Kind: kind, cause: cause}
}

// With attaches a log context key/value and returns the fault for chaining.
// Context is for logs only; never put secrets here.
func (f *Fault) With(key string, value any) *Fault {
	if f.Context == nil {
		f.Context = make(map[string]any)
	}
	f.Context[key] = value
	return f
}

// Error implements the error interface. Internal representation; the public
// message is Message().
func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.cause)
	}
	return string(f.Kind)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (f *Fault) Unwrap() error { return f.cause }

// Message returns the fixed public message for the fault's kind.
func (f *Fault) Message() string {
	if m, ok := messageByKind[f.Kind]; ok {
		return m
	}
	return messageByKind[KindUnexpected]
}

// HTTPStatus returns the fixed HTTP status for the fault's kind.
func (f *Fault) HTTPStatus() int {
	if s, ok := statusByKind[f.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// From converts any error into a Fault. Errors already carrying a Fault
// (directly or wrapped) pass through unchanged; everything else collapses
// to KindUnexpected, keeping the original as the logged cause.
func From(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return Wrap(KindUnexpected, err)
}

// IsKind reports whether err is (or wraps) a Fault of the given kind.
func IsKind(err error, kind Kind) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == kind
}
