// Package apperr is the typed error vocabulary of the service layer.
// httpkit.HandleError turns a Kind into a status code, so handlers only
// pass errors through.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound covers missing rows and rows owned by another tenant.
	KindNotFound
	// KindValidation is bad caller input, including unknown enum values.
	KindValidation
	// KindConflict is a duplicate address or a stale expected version.
	KindConflict
	KindInternal
	// KindProvider is a failed call to an external valuation, comp or storage provider.
	KindProvider
)

// Error carries a Kind plus an optional operation, cause and response details.
type Error struct {
	Kind    Kind
	Message string
	Op      string
	Err     error
	Details interface{}
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindInternal:
		return http.StatusInternalServerError
	case KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the failing operation, e.g. "management.Update".
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails attaches a payload that is echoed in the error response.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict is returned for duplicate addresses and version mismatches; the
// caller re-fetches instead of overwriting.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Provider wraps a failed external call. The cause is kept for logs and
// never shown to the client.
func Provider(provider string, err error) *Error {
	return &Error{Kind: KindProvider, Message: provider + " unavailable", Err: err}
}

// FieldError names one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidField is a validation error for a single field, reported under
// details.fields so clients can highlight it.
func InvalidField(field, message string) *Error {
	return Validation(field + ": " + message).WithDetails(map[string][]FieldError{
		"fields": {{Field: field, Message: message}},
	})
}

// GetKind returns KindUnknown for errors that are not an *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
