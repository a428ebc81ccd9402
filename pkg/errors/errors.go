package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation_failed"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// Reason codes carried by denials and conflicts.
const (
	ReasonNotFound          = "not_found"
	ReasonInactive          = "inactive"
	ReasonNoRole            = "no_role"
	ReasonMissingPermission = "missing_permission"
	ReasonOutOfScope        = "out_of_scope"
	ReasonNotAssigned       = "not_assigned"
	ReasonRoleElevation     = "role_elevation"
	ReasonAdminOnly         = "admin_only"
	ReasonAlreadyProcessed  = "already_processed"
	ReasonConcurrentUpdate  = "concurrent_update"
	ReasonActiveAppointment = "active_appointment_exists"
	ReasonNotFullyApproved  = "not_fully_approved"
	ReasonNotEditable       = "not_editable"
	ReasonImmutable         = "immutable"
	ReasonIllegalTransition = "illegal_transition"
	ReasonDuplicate         = "duplicate"
)

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"-"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Unauthenticated(message string) *AppError {
	return &AppError{Kind: KindUnauthenticated, Message: message}
}

func Forbidden(reason, message string) *AppError {
	return &AppError{Kind: KindForbidden, Reason: reason, Message: message}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Reason:  ReasonNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Conflict(reason, message string) *AppError {
	return &AppError{Kind: KindConflict, Reason: reason, Message: message}
}

func Validation(message string, err error) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Err: err}
}

func Dependency(message string, err error) *AppError {
	return &AppError{Kind: KindDependency, Message: message, Err: err}
}

func Internal(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "internal server error", Err: err}
}

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// ReasonOf returns the reason code of err, or "" if none.
func ReasonOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Reason
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
