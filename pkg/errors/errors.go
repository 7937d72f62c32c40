package vahub_errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping and retry decisions.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindAuthorization Kind = "AUTHORIZATION"
	KindNotFound      Kind = "NOT_FOUND"
	KindConflict      Kind = "CONFLICT"
	KindTransient     Kind = "TRANSIENT"
)

// AppError is the structured error surfaced to HTTP and socket clients.
type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a caller may safely retry the failed
// operation. Only transient failures qualify; the caller still owns
// the idempotency decision.
func (e *AppError) Retryable() bool {
	return e.Kind == KindTransient
}

func Validation(code, message string) *AppError {
	return &AppError{Kind: KindValidation, Code: code, Message: message}
}

func Authorization(code, message string) *AppError {
	return &AppError{Kind: KindAuthorization, Code: code, Message: message}
}

func NotFound(code, message string) *AppError {
	return &AppError{Kind: KindNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *AppError {
	return &AppError{Kind: KindConflict, Code: code, Message: message}
}

func Transient(code, message string, err error) *AppError {
	return &AppError{Kind: KindTransient, Code: code, Message: message, Err: err}
}

// Wrap attaches an underlying cause, preserving kind and code.
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

// Common errors
var (
	ErrNotFound          = NotFound("NOT_FOUND", "resource not found")
	ErrUnauthorized      = Authorization("UNAUTHORIZED", "unauthorized")
	ErrNotParticipant    = Authorization("NOT_PARTICIPANT", "not a participant of this conversation")
	ErrAdminOnly         = Authorization("ADMIN_ONLY", "admin access required")
	ErrInvalidInput      = Validation("INVALID_INPUT", "invalid input")
	ErrAlreadyExists     = Conflict("ALREADY_EXISTS", "already exists")
	ErrEditWindowClosed  = Conflict("EDIT_WINDOW_CLOSED", "message can no longer be edited")
	ErrConversationBlock = Conflict("CONVERSATION_BLOCKED", "conversation is blocked")
	ErrSpamTerminal      = Conflict("SPAM_TERMINAL", "spam conversations require an explicit status change")
)

// HTTPStatus maps an error to the status code the gin error middleware
// writes. Unknown errors map to 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

func IsConflict(err error) bool { return IsKind(err, KindConflict) }

// CodeOf extracts the machine code, defaulting to INTERNAL_ERROR.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}
