package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// DomainError maps a domain sentinel error to its HTTP status and writes
// the response. Unauthorized-class errors all surface the same message so
// nothing leaks about which check failed.
func DomainError(w http.ResponseWriter, err error) {
	switch {
	// ErrSessionExpired and ErrSessionRevoked wrap ErrInvalidToken, so the
	// first case collapses them to the same uniform message.
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidToken):
		Error(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrInvalidTempToken),
		errors.Is(err, domain.ErrInvalidMFACode):
		Error(w, http.StatusUnauthorized, "invalid or expired MFA code")

	case errors.Is(err, domain.ErrMFALockedOut),
		errors.Is(err, domain.ErrCaptchaRequired),
		errors.Is(err, domain.ErrCaptchaInvalid):
		Error(w, http.StatusForbidden, err.Error())

	case errors.Is(err, domain.ErrEmailAlreadyRegistered),
		errors.Is(err, domain.ErrMFAAlreadyEnabled):
		Error(w, http.StatusConflict, err.Error())

	case errors.Is(err, domain.ErrMFANotConfigured),
		errors.Is(err, domain.ErrWeakPassword),
		errors.Is(err, domain.ErrPasswordMismatch),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrVerificationInvalid),
		errors.Is(err, domain.ErrResetTokenInvalid):
		Error(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		Error(w, http.StatusNotFound, err.Error())

	default:
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}
