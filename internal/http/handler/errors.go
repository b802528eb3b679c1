package handler

import (
	"errors"
	"net/http"

	"github.com/smarthubultra/identity-service/internal/http/response"
	"github.com/smarthubultra/identity-service/internal/service"
)

// writeServiceError maps service failures onto the response envelope.
// Credential failures are 410 Gone except unknown tokens, which are a
// plain 404.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if ce, ok := service.IsCredentialInvalid(err); ok {
		switch ce.Reason {
		case service.ReasonNotFound:
			response.Error(w, r, http.StatusNotFound, "CREDENTIAL_NOT_FOUND", "credential not found", nil)
		default:
			response.Error(w, r, http.StatusGone, "CREDENTIAL_INVALID", "credential no longer valid", map[string]string{"reason": ce.Reason})
		}
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		response.Error(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
	case errors.Is(err, service.ErrUnauthenticated):
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	case errors.Is(err, service.ErrPermissionDenied):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "permission denied", nil)
	case errors.Is(err, service.ErrExhaustedAttempts):
		response.Error(w, r, http.StatusServiceUnavailable, "CODE_SPACE_EXHAUSTED", "could not allocate a code, try again", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
