package account

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/backoffice-kit/authcore/internal/httputil"
	"github.com/backoffice-kit/authcore/pkg/auth"
)

// Handler handles registration and email verification endpoints.
type Handler struct {
	logger      *slog.Logger
	authService *auth.AuthService
}

// NewHandler creates a new account handler.
func NewHandler(logger *slog.Logger, authService *auth.AuthService) *Handler {
	return &Handler{logger: logger, authService: authService}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Register creates a pending account and sends a verification email.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fp := auth.FingerprintFromRequest(r)
	if err := h.authService.Register(r.Context(), auth.RegisterRequest{
		Email:           req.Email,
		Name:            req.Name,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	}, fp); err != nil {
		httputil.DomainError(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]string{
		"message": "registration successful, please check your email to verify your account",
	})
}

// VerifyRequest represents an email verification request.
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerifyEmail activates a pending account.
// POST /v1/auth/verify-email
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		httputil.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.authService.VerifyEmail(r.Context(), req.Token, auth.FingerprintFromRequest(r)); err != nil {
		httputil.DomainError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

// ResendRequest represents a verification resend request.
type ResendRequest struct {
	Email string `json:"email"`
}

// ResendVerification resends the verification email. The response is the
// same whether or not the email matched a pending account.
// POST /v1/auth/resend-verification
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authService.ResendVerification(r.Context(), req.Email); err != nil {
		h.logger.Error("failed to resend verification", "error", err)
	}

	httputil.JSON(w, http.StatusOK, map[string]string{
		"message": "if the email matches a pending account, a verification email has been sent",
	})
}
