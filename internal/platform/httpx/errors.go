package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// RespondError maps domain errors to the envelope and status code. Errors
// outside the taxonomy are logged and answered with a generic message.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validation *shared.ValidationError
		conflict   *shared.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		Fail(w, http.StatusBadRequest, "validation failed", validation.Fields...)
	case errors.As(err, &conflict):
		Fail(w, http.StatusBadRequest, "validation failed", conflict.FieldErrors()...)
	case errors.Is(err, shared.ErrValidation):
		Fail(w, http.StatusBadRequest, "validation failed")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Fail(w, http.StatusUnauthorized, shared.ErrInvalidCredentials.Error())
	case errors.Is(err, shared.ErrUnauthenticated):
		Fail(w, http.StatusUnauthorized, shared.ErrUnauthenticated.Error())
	case errors.Is(err, shared.ErrForbidden):
		Fail(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, "not found")
	case errors.Is(err, shared.ErrUnavailable):
		Fail(w, http.StatusNotImplemented, shared.ErrUnavailable.Error())
	case errors.Is(err, shared.ErrReorderFailed):
		if logger != nil {
			logger.Error("reorder failed", slog.Any("error", err))
		}
		Fail(w, http.StatusInternalServerError, shared.ErrReorderFailed.Error())
	default:
		if logger != nil {
			logger.Error("internal error", slog.Any("error", err))
		}
		Fail(w, http.StatusInternalServerError, "internal server error")
	}
}
