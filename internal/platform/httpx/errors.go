package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/agrohub/agrohub/internal/shared"
)

// Error codes returned in the envelope "code" field.
const (
	CodeValidation     = "validation_error"
	CodeUnauthorized   = "authentication_required"
	CodeForbidden      = "permission_denied"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeInternal       = "internal_error"
	CodeMethodNotAllow = "method_not_allowed"
)

// StatusFor maps a domain error onto its HTTP status and envelope code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, shared.ErrAuthenticationRequired):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, shared.ErrPermissionDenied):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, shared.ErrConflict), shared.IsUniqueViolation(err):
		return http.StatusConflict, CodeConflict
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// RespondError maps domain errors to the failure envelope. Internal errors are
// logged and replaced with a generic message.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := StatusFor(err)
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		Fail(w, status, code, "internal server error", "")
		return
	}
	var field string
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		field = verr.Field
	}
	if status == http.StatusConflict && !errors.Is(err, shared.ErrConflict) {
		Fail(w, status, code, "duplicate entry", field)
		return
	}
	Fail(w, status, code, shared.UserSafeMessage(err), field)
}
