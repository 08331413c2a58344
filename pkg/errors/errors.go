package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on the error code so predefined values survive Clone and Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid nric or password")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Allocation business rules.
	ErrInvalidState         = New("INVALID_STATE", http.StatusConflict, "operation not permitted from current status")
	ErrIneligible           = New("NOT_ELIGIBLE", http.StatusUnprocessableEntity, "eligibility rules not satisfied")
	ErrDuplicateApplication = New("DUPLICATE_APPLICATION", http.StatusConflict, "applicant already holds an active application")
	ErrDuplicateBooking     = New("DUPLICATE_BOOKING", http.StatusConflict, "applicant already holds a booking")
	ErrAlreadyRegistered    = New("ALREADY_REGISTERED", http.StatusConflict, "registration already exists for project")
	ErrSlotsFull            = New("SLOTS_FULL", http.StatusConflict, "officer slots exhausted")
	ErrUnitUnavailable      = New("UNIT_UNAVAILABLE", http.StatusConflict, "no remaining units of requested type")
	ErrPreferenceMismatch   = New("PREFERENCE_MISMATCH", http.StatusConflict, "unit type differs from recorded preference")
	ErrProjectClosed        = New("PROJECT_CLOSED", http.StatusUnprocessableEntity, "project application window has closed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
