package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures so handlers and the outbox state machine can
// react without string matching.
type ErrorKind string

const (
	ErrorKindValidation   ErrorKind = "VALIDATION"
	ErrorKindUnauthorized ErrorKind = "UNAUTHORIZED"
	ErrorKindForbidden    ErrorKind = "FORBIDDEN"
	ErrorKindNotFound     ErrorKind = "NOT_FOUND"
	ErrorKindConflict     ErrorKind = "CONFLICT"

	// ErrorKindTransient marks a processing failure that should be retried by
	// the outbox state machine. ErrorKindFatal exhausts the retry budget
	// immediately; the event goes straight to dead.
	ErrorKindTransient ErrorKind = "TRANSIENT"
	ErrorKindFatal     ErrorKind = "FATAL"
)

type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewValidationError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewUnauthorizedError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func NewForbiddenError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewTransientError(err error, format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindTransient, Message: fmt.Sprintf(format, args...), Err: err}
}

func NewFatalError(err error, format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindFatal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the AppError kind, or ErrorKindTransient for plain errors:
// anything untyped coming out of a processor is assumed retryable.
func KindOf(err error) ErrorKind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ErrorKindTransient
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the REST surface responds with.
func HTTPStatus(err error) int {
	if errors.Is(err, ErrorRecordNotFound) {
		return http.StatusNotFound
	}
	switch KindOf(err) {
	case ErrorKindValidation:
		return http.StatusBadRequest
	case ErrorKindUnauthorized:
		return http.StatusUnauthorized
	case ErrorKindForbidden:
		return http.StatusForbidden
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
