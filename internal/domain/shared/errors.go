// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
// The first four are the categories every callable surfaces to its caller.
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")

	ErrAlreadyExists   = errors.New("already exists")
	ErrExternalService = errors.New("external service error")
)

// Error codes as seen by callers of the callable endpoints.
const (
	CodeUnauthenticated  = "unauthenticated"
	CodePermissionDenied = "permission-denied"
	CodeInvalidArgument  = "invalid-argument"
	CodeNotFound         = "not-found"
	CodeAlreadyExists    = "already-exists"
	CodeInternal         = "internal"
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "student", "account", "company"
	Op      string // operation that failed, e.g. "ComputeReadiness"
	Kind    error  // base error for errors.Is() checking
	Message string // human-readable message, safe to show to callers
	Err     error  // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student domain errors
var (
	ErrStudentNotFound = NewDomainError("student", "Find", ErrNotFound, "student record not found")
	ErrInvalidIDHash   = NewDomainError("student", "DecodeIDHash", ErrInvalidArgument, "malformed credential identifier")
)

// Company domain errors
var (
	ErrCompanyNotFound = NewDomainError("company", "FindByName", ErrNotFound, "company profile not found")
)

// Account domain errors
var (
	ErrAccountNotFound = NewDomainError("account", "Find", ErrNotFound, "user account not found")
	ErrNoCaller        = NewDomainError("account", "Authenticate", ErrUnauthenticated, "the function must be called while authenticated")
	ErrAdminRequired   = NewDomainError("account", "Authorize", ErrPermissionDenied, "only admins can assign roles")
	ErrInvalidRole     = NewDomainError("account", "Validate", ErrInvalidArgument, "role must be one of Admin, Faculty, Student")
	ErrBadCredentials  = NewDomainError("account", "SignIn", ErrUnauthenticated, "invalid email or password")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// CodeOf maps an error to the category string surfaced to callers.
// Anything outside the domain taxonomy is reported as internal.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	default:
		return CodeInternal
	}
}

// MessageOf returns the caller-facing message for err. Internal errors are not
// described to callers.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) && CodeOf(err) != CodeInternal {
		return de.Message
	}
	if CodeOf(err) == CodeInternal {
		return "internal error"
	}
	return err.Error()
}

// IsRetryable reports whether an operation that failed with err may be repeated.
// Errors in the caller-facing taxonomy are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == CodeInternal || errors.Is(err, ErrExternalService)
}
