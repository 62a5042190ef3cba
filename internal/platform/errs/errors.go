// Package errs defines the error taxonomy shared by the workflow engine.
// Every public operation returns one of these typed errors at its boundary;
// only Transient errors are safe to retry.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation error")
	ErrTransient  = errors.New("transient store error")
)

// AppError carries an error code, HTTP mapping and field-level details.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(keys, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a not-found error. It is a decision point for the
// caller (e.g. offer registration), not a hard failure.
func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "key": key},
	}
}

// Conflict creates a conflict error.
func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Message:    message,
		Code:       "CONFLICT",
		HTTPStatus: http.StatusConflict,
	}
}

// Validation creates a validation error. Details must name every violated
// field so the caller sees the full report in one round trip.
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// Transient wraps a connection or transaction failure. The whole operation
// may be retried; never a part of it.
func Transient(err error) *AppError {
	return &AppError{
		Err:        ErrTransient,
		Message:    "transient store error",
		Code:       "TRANSIENT",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]string{"cause": err.Error()},
	}
}

// IsRetryable reports whether the caller may retry the whole operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// HTTPStatus maps any error to its HTTP status, defaulting to 500.
func HTTPStatus(err error) int {
	var app *AppError
	if errors.As(err, &app) {
		return app.HTTPStatus
	}
	return http.StatusInternalServerError
}
