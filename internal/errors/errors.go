/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errors implements the uniform domain error taxonomy described
// in spec.md §7: every operation that can fail returns (or wraps) an
// *AppError carrying a stable ErrorType, instead of ad-hoc error
// strings or panics.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType is a stable taxonomy tag. Two errors of the same ErrorType
// are the same *kind* of failure even if their messages differ.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeInternal   ErrorType = "internal"

	// Domain-specific kinds from spec.md §7. They reuse the same
	// AppError machinery (and the same HTTP-status mapping table) as
	// the generic kinds above rather than forming a second taxonomy.
	ErrorTypeNotAuthorized            ErrorType = "not_authorized"
	ErrorTypeInvalidData              ErrorType = "invalid_data"
	ErrorTypeInvalidArgument          ErrorType = "invalid_argument"
	ErrorTypeDuplicateResource        ErrorType = "duplicate_resource"
	ErrorTypeInvalidWorkflowTransition ErrorType = "invalid_workflow_transition"
	ErrorTypeExternalService          ErrorType = "external_service"
	ErrorTypeSequenceTooLong          ErrorType = "sequence_too_long"
)

// statusCodes maps every ErrorType to the HTTP status the API edge
// should return for it (spec.md §7 propagation policy).
var statusCodes = map[ErrorType]int{
	ErrorTypeValidation:                http.StatusBadRequest,
	ErrorTypeAuth:                      http.StatusUnauthorized,
	ErrorTypeNotFound:                  http.StatusNotFound,
	ErrorTypeConflict:                  http.StatusConflict,
	ErrorTypeTimeout:                   http.StatusRequestTimeout,
	ErrorTypeRateLimit:                 http.StatusTooManyRequests,
	ErrorTypeDatabase:                  http.StatusInternalServerError,
	ErrorTypeNetwork:                   http.StatusInternalServerError,
	ErrorTypeInternal:                  http.StatusInternalServerError,
	ErrorTypeNotAuthorized:             http.StatusUnauthorized,
	ErrorTypeInvalidData:               http.StatusUnprocessableEntity,
	ErrorTypeInvalidArgument:           http.StatusBadRequest,
	ErrorTypeDuplicateResource:         http.StatusConflict,
	ErrorTypeInvalidWorkflowTransition: http.StatusConflict,
	ErrorTypeExternalService:           http.StatusBadGateway,
	ErrorTypeSequenceTooLong:           http.StatusUnprocessableEntity,
}

// AppError is the concrete carrier every fallible ODB operation returns.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	StatusCode int
	Cause      error
}

func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusCodeFor(t),
	}
}

func Newf(t ErrorType, format string, args ...any) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

func Wrap(cause error, t ErrorType, message string) *AppError {
	err := New(t, message)
	err.Cause = cause
	return err
}

func Wrapf(cause error, t ErrorType, format string, args ...any) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

func statusCodeFor(t ErrorType) int {
	if code, ok := statusCodes[t]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetailsf(format string, args ...any) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// IsType reports whether err is an *AppError of type t.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// GetType returns err's ErrorType, or ErrorTypeInternal if err is not an
// *AppError.
func GetType(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// --- domain constructors (spec.md §7) ---

func NotAuthorized(message string) *AppError {
	return New(ErrorTypeNotAuthorized, message)
}

func NotFound(kind, id string) *AppError {
	return Newf(ErrorTypeNotFound, "%s not found", kind).WithDetails(id)
}

func InvalidData(id, message string) *AppError {
	return New(ErrorTypeInvalidData, message).WithDetails(id)
}

func InvalidArgument(message string) *AppError {
	return New(ErrorTypeInvalidArgument, message)
}

func DuplicateResource(message string) *AppError {
	return New(ErrorTypeDuplicateResource, message)
}

func InvalidWorkflowTransition(from, to string) *AppError {
	return Newf(ErrorTypeInvalidWorkflowTransition, "cannot transition from %s to %s", from, to)
}

func ExternalServiceError(service, detail string) *AppError {
	return Newf(ErrorTypeExternalService, "external service %s failed", service).WithDetails(detail)
}

func SequenceTooLong() *AppError {
	return New(ErrorTypeSequenceTooLong, "generated sequence exceeds the maximum representable atom count")
}
