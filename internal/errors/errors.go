// Package errors defines the service error taxonomy. Every failure surfaced
// by the state layer carries a stable code so callers can branch on the
// condition without string matching.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes.
const (
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeDuplicateIdentity   = "DUPLICATE_IDENTITY"
	CodeRemoteFailure       = "REMOTE_FAILURE"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidInput        = "INVALID_INPUT"
)

// ServiceError is the error type returned by all services in this layer.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is matches two service errors by code so errors.Is works with sentinels.
func (e *ServiceError) Is(target error) bool {
	var se *ServiceError
	if errors.As(target, &se) {
		return e.Code == se.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrUnauthenticated     = &ServiceError{Code: CodeUnauthenticated}
	ErrInsufficientCredits = &ServiceError{Code: CodeInsufficientCredits}
	ErrDuplicateIdentity   = &ServiceError{Code: CodeDuplicateIdentity}
	ErrRemoteFailure       = &ServiceError{Code: CodeRemoteFailure}
	ErrNotFound            = &ServiceError{Code: CodeNotFound}
)

// Unauthenticated reports that no user could be resolved for the operation.
func Unauthenticated(msg string) *ServiceError {
	if msg == "" {
		msg = "authentication required"
	}
	return &ServiceError{Code: CodeUnauthenticated, Message: msg, HTTPStatus: http.StatusUnauthorized}
}

// InsufficientCredits reports a rejected cost-bearing operation. The message
// is user-facing so the caller can offer an upgrade path.
func InsufficientCredits(available, required float64) *ServiceError {
	return &ServiceError{
		Code:       CodeInsufficientCredits,
		Message:    fmt.Sprintf("insufficient credits: %.2f available, %.2f required. Please upgrade your plan.", available, required),
		HTTPStatus: http.StatusPaymentRequired,
	}
}

// DuplicateIdentity reports a sign-up with an already registered email.
func DuplicateIdentity(email string) *ServiceError {
	return &ServiceError{
		Code:       CodeDuplicateIdentity,
		Message:    fmt.Sprintf("email %s is already registered", email),
		HTTPStatus: http.StatusConflict,
	}
}

// Remote wraps a failure from a remote collaborator. It is propagated
// unchanged; there is no retry and no fallback to local storage.
func Remote(op string, err error) *ServiceError {
	return &ServiceError{
		Code:       CodeRemoteFailure,
		Message:    op + " failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NotFound reports a missing record.
func NotFound(kind, id string) *ServiceError {
	return &ServiceError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s %s not found", kind, id),
		HTTPStatus: http.StatusNotFound,
	}
}

// InvalidInput reports a rejected argument.
func InvalidInput(msg string) *ServiceError {
	return &ServiceError{Code: CodeInvalidInput, Message: msg, HTTPStatus: http.StatusBadRequest}
}

// GetServiceError extracts a *ServiceError from err, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// Re-exported stdlib helpers so call sites need a single import.
var (
	New = errors.New
	Is  = errors.Is
	As  = errors.As
)
