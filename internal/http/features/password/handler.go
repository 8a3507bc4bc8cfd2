package password

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/backoffice-kit/authcore/internal/http/middleware"
	"github.com/backoffice-kit/authcore/internal/httputil"
	"github.com/backoffice-kit/authcore/pkg/auth"
)

// Handler handles password reset and change endpoints.
type Handler struct {
	logger      *slog.Logger
	authService *auth.AuthService
}

// NewHandler creates a new password handler.
func NewHandler(logger *slog.Logger, authService *auth.AuthService) *Handler {
	return &Handler{logger: logger, authService: authService}
}

// ForgotRequest represents a forgot-password request.
type ForgotRequest struct {
	Email string `json:"email"`
}

// Forgot creates a reset artifact and emails the link. The response never
// reveals whether the email exists.
// POST /v1/auth/password/forgot
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email, auth.FingerprintFromRequest(r)); err != nil {
		h.logger.Error("failed to process forgot password", "error", err)
	}

	httputil.JSON(w, http.StatusOK, map[string]string{
		"message": "if the email is registered, a password reset link has been sent",
	})
}

// ResetRequest represents a reset-password request.
type ResetRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Reset sets a new password using a reset token and logs out every device.
// POST /v1/auth/password/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		httputil.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password, req.ConfirmPassword, auth.FingerprintFromRequest(r)); err != nil {
		httputil.DomainError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "password has been reset, please log in again"})
}

// ChangeRequest represents a change-password request for an authenticated
// user.
type ChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
	RefreshToken    string `json:"refresh_token,omitempty"`
}

// Change updates the caller's password and revokes every other session.
// POST /v1/auth/password/change
func (h *Handler) Change(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authService.ChangePassword(r.Context(), userID,
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword,
		req.RefreshToken, auth.FingerprintFromRequest(r)); err != nil {
		httputil.DomainError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}
