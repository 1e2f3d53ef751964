// Package apperrors defines the error taxonomy shared by the host client,
// the warehouse and the HTTP surface.
package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code is the machine-readable error kind, surfaced as "code" in the
// HTTP error envelope.
type Code string

const (
	CodeValidation       Code = "validation"
	CodeNotFound         Code = "not_found"
	CodeUnauthorized     Code = "unauthorized"
	CodeRateLimited      Code = "rate_limited"
	CodeHostError        Code = "host_error"
	CodeWarehouseError   Code = "warehouse_error"
	CodeDeadlineExceeded Code = "deadline_exceeded"
	CodeInternal         Code = "internal"
)

// statusByCode maps each kind to its HTTP status.
var statusByCode = map[Code]int{
	CodeValidation:       http.StatusBadRequest,
	CodeNotFound:         http.StatusNotFound,
	CodeUnauthorized:     http.StatusBadGateway,
	CodeRateLimited:      http.StatusServiceUnavailable,
	CodeHostError:        http.StatusBadGateway,
	CodeWarehouseError:   http.StatusInternalServerError,
	CodeDeadlineExceeded: http.StatusGatewayTimeout,
	CodeInternal:         http.StatusInternalServerError,
}

// AppError carries an error kind plus optional host context.
type AppError struct {
	Code       Code
	Message    string
	RetryAfter time.Duration // set for rate_limited
	Status     int           // host HTTP status, set for host_error
	Err        error
}

// Error implements error.
func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus returns the HTTP status for the error's kind.
func (e *AppError) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates an AppError with a formatted message.
func New(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation reports a bad request input.
func Validation(format string, args ...any) *AppError {
	return New(CodeValidation, format, args...)
}

// NotFound reports an unknown repo, milestone or project.
func NotFound(format string, args ...any) *AppError {
	return New(CodeNotFound, format, args...)
}

// Unauthorized reports a credential rejected by the host.
func Unauthorized(format string, args ...any) *AppError {
	return New(CodeUnauthorized, format, args...)
}

// RateLimited reports host rate-limit exhaustion with a retry hint.
func RateLimited(retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    "host API rate limit exhausted",
		RetryAfter: retryAfter,
	}
}

// HostError reports a terminal host failure after retries.
func HostError(status int, message string) *AppError {
	return &AppError{Code: CodeHostError, Message: message, Status: status}
}

// Warehouse wraps a storage failure.
func Warehouse(err error) *AppError {
	return &AppError{Code: CodeWarehouseError, Message: "warehouse query failed", Err: err}
}

// Internal wraps an unexpected condition.
func Internal(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "internal error", Err: err}
}

// From classifies an arbitrary error into an AppError. Context deadline
// expiry maps to deadline_exceeded; everything unrecognized is internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: CodeDeadlineExceeded, Message: "request deadline exceeded", Err: err}
	}
	return &AppError{Code: CodeInternal, Message: "internal error", Err: err}
}

// CodeOf returns the kind of an error, or internal when unclassified.
func CodeOf(err error) Code {
	return From(err).Code
}
