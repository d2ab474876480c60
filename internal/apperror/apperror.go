// internal/apperror/apperror.go

// Package apperror defines the error kinds services return to callers.
// Everything except KindInternal is an expected business outcome.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindValidation          Kind = "validation"
	KindMissingRequirements Kind = "missing_requirements"
	KindUnavailable         Kind = "unavailable"
	KindInternal            Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of e carrying details for the client.
func (e *Error) WithDetails(details interface{}) *Error {
	c := *e
	c.Details = details
	return &c
}

func Conflict(message string, details interface{}) *Error {
	return &Error{Kind: KindConflict, Message: message, Details: details}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found", Details: map[string]string{"resource": resource}}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// MissingRequirements names exactly which requirements are not met.
func MissingRequirements(missing []string) *Error {
	return &Error{
		Kind:    KindMissingRequirements,
		Message: fmt.Sprintf("missing requirements: %v", missing),
		Details: map[string]interface{}{"missing": missing},
	}
}

func Unavailable(reason string) *Error {
	return &Error{Kind: KindUnavailable, Message: reason}
}

// Internal wraps a storage or infrastructure failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, treating untyped errors as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As extracts the typed error if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
