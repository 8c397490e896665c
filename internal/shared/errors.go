package shared

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrAuthenticationRequired indicates a missing, expired or invalid credential.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrAuthenticationRequired)
	// ErrPermissionDenied indicates the caller lacks the capability for the action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the request clashes with current state.
	ErrConflict = errors.New("conflict")
)

// Error carries a client-safe message for one of the sentinel kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// NewError wraps kind with a message that may be shown to API clients.
func NewError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// MissingField reports a required field that was absent or empty.
func MissingField(field string) error {
	return &ValidationError{Field: field, Message: "field '" + field + "' is required"}
}

// Invalid reports a field whose value is not acceptable.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsUniqueViolation reports whether err is a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// UserSafeMessage extracts the message that can be surfaced to clients.
func UserSafeMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Message
	}
	for _, kind := range []error{ErrAuthenticationRequired, ErrPermissionDenied, ErrNotFound, ErrValidation, ErrConflict} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal server error"
}

// IsForeignKeyViolation reports whether err is a postgres foreign_key_violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
