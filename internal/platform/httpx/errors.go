package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
)

// StatusFor maps an error category to its HTTP status.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, shared.ErrConflict):
		return http.StatusBadRequest, "Conflict"
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, shared.ErrUnprocessable):
		return http.StatusUnprocessableEntity, "Unprocessable Entity"
	case errors.Is(err, shared.ErrUpstream):
		return http.StatusBadGateway, "Bad Gateway"
	case errors.Is(err, shared.ErrLockTimeout):
		return http.StatusServiceUnavailable, "Busy"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// The detail is the error's stable code; uncoded internal errors carry no detail.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	detail := shared.CodeOf(err)
	if detail == "" && status != http.StatusInternalServerError {
		detail = err.Error()
	}
	Problem(w, status, title, detail)
}
