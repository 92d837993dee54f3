package apperr

import (
	"errors"
	"net/http"
)

// Error represents a typed, status-aware application error.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message,omitempty"`
	Status  int            `json:"-"`
	Fields  map[string]any `json:"fields,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return "error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code, so a wrapped or message-carrying copy still
// compares equal to its base sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func Wrap(err error, base *Error, message string) *Error {
	if err == nil {
		return nil
	}
	if base == nil {
		base = ErrInternal
	}
	copy := *base
	if message != "" {
		copy.Message = message
	}
	copy.Err = err
	return &copy
}

// Remote wraps a failure bubbled up from the remote directory. The provider's
// message is carried verbatim so operators can debug against the provider's own
// logs.
func Remote(message string) *Error {
	copy := *ErrRemote
	copy.Message = message
	return &copy
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

func Status(err error) int {
	if e, ok := As(err); ok && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

func Code(err error) string {
	if e, ok := As(err); ok && e.Code != "" {
		return e.Code
	}
	return "internal_error"
}

func Message(err error) string {
	if e, ok := As(err); ok {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Code
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// Payload is the JSON error shape shared by the session and bearer access
// paths.
func Payload(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	if e, ok := As(err); ok {
		payload := map[string]any{
			"code":    Code(e),
			"message": Message(e),
		}
		if len(e.Fields) > 0 {
			payload["fields"] = e.Fields
		}
		return payload
	}
	return map[string]any{
		"code":    "internal_error",
		"message": err.Error(),
	}
}

var (
	// authentication failures
	ErrUnauthorized    = New("unauthorized", http.StatusUnauthorized, "")
	ErrTokenInvalid    = New("token_invalid", http.StatusUnauthorized, "invalid credential")
	ErrEmailUnverified = New("email_unverified", http.StatusUnauthorized, "Check your email to verify your account")

	// authorization failures
	ErrForbidden         = New("forbidden", http.StatusForbidden, "")
	ErrInsufficientScope = New("insufficient_scope", http.StatusForbidden, "Insufficient scope")

	// business rule violations
	ErrBadRequest        = New("bad_request", http.StatusBadRequest, "")
	ErrValidation        = New("validation_error", http.StatusBadRequest, "")
	ErrNoSuchRole        = New("no_such_role", http.StatusNotFound, "No such role")
	ErrNoSuchAgent       = New("no_such_agent", http.StatusNotFound, "No such agent")
	ErrRoleNotAssigned   = New("role_not_assigned", http.StatusNotFound, "Role not assigned")
	ErrPrimaryUnverified = New("primary_unverified", http.StatusBadRequest, "Primary email is not verified")
	ErrNotFound          = New("not_found", http.StatusNotFound, "")

	// remote provider failures
	ErrRemote            = New("remote_error", http.StatusBadGateway, "")
	ErrRemoteUnavailable = New("remote_unavailable", http.StatusBadGateway, "directory is unreachable")

	// persistence failures: no partial-state rollback is attempted, the caller
	// retries the whole operation
	ErrDatabase = New("database_error", http.StatusInternalServerError, "")
	ErrInternal = New("internal_error", http.StatusInternalServerError, "")
)
