package login

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/backoffice-kit/authcore/internal/httputil"
	"github.com/backoffice-kit/authcore/pkg/auth"
	"github.com/backoffice-kit/authcore/pkg/domain"
)

// Handler handles login endpoints, including the MFA second step and the
// CAPTCHA surface for throttled clients.
type Handler struct {
	logger      *slog.Logger
	authService *auth.AuthService
}

// NewHandler creates a new login handler.
func NewHandler(logger *slog.Logger, authService *auth.AuthService) *Handler {
	return &Handler{logger: logger, authService: authService}
}

// LoginRequest represents a password login request.
type LoginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	RememberMe    bool   `json:"remember_me"`
	CaptchaID     string `json:"captcha_id,omitempty"`
	CaptchaAnswer int    `json:"captcha_answer,omitempty"`
}

// LoginResponse represents a login response. Either the token fields or
// the MFA challenge fields are populated, never both.
type LoginResponse struct {
	*domain.TokenPair
	MFARequired bool   `json:"mfa_required,omitempty"`
	TempToken   string `json:"temp_token,omitempty"`
}

// Login authenticates with email and password.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.authService.Login(r.Context(), auth.LoginRequest{
		Email:         req.Email,
		Password:      req.Password,
		RememberMe:    req.RememberMe,
		CaptchaID:     req.CaptchaID,
		CaptchaAnswer: req.CaptchaAnswer,
	}, auth.FingerprintFromRequest(r))
	if err != nil {
		httputil.DomainError(w, err)
		return
	}

	if result.MFARequired {
		httputil.JSON(w, http.StatusOK, LoginResponse{
			MFARequired: true,
			TempToken:   result.TempToken,
		})
		return
	}
	httputil.JSON(w, http.StatusOK, LoginResponse{TokenPair: result.Tokens})
}

// MFALoginRequest represents the second-factor step of a login.
type MFALoginRequest struct {
	TempToken  string `json:"temp_token"`
	Code       string `json:"code,omitempty"`
	BackupCode string `json:"backup_code,omitempty"`
	RememberMe bool   `json:"remember_me"`
}

// MFALoginResponse represents a completed MFA login.
type MFALoginResponse struct {
	*domain.TokenPair
	BackupCodesRemaining *int `json:"backup_codes_remaining,omitempty"`
}

// LoginMFA completes a login with a TOTP or backup code.
// POST /v1/auth/login/mfa
func (h *Handler) LoginMFA(w http.ResponseWriter, r *http.Request) {
	var req MFALoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TempToken == "" {
		httputil.Error(w, http.StatusBadRequest, "temp_token is required")
		return
	}
	if req.Code == "" && req.BackupCode == "" {
		httputil.Error(w, http.StatusBadRequest, "code or backup_code is required")
		return
	}

	result, err := h.authService.LoginMFA(r.Context(), auth.MFALoginRequest{
		TempToken:  req.TempToken,
		Code:       req.Code,
		BackupCode: req.BackupCode,
		RememberMe: req.RememberMe,
	}, auth.FingerprintFromRequest(r))
	if err != nil {
		httputil.DomainError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, MFALoginResponse{
		TokenPair:            result.Tokens,
		BackupCodesRemaining: result.BackupCodesRemaining,
	})
}

// Status reports the throttle state for the caller's IP, so the login form
// knows whether to render a CAPTCHA.
// GET /v1/auth/login/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.authService.LoginStatus(auth.ClientIP(r))
	httputil.JSON(w, http.StatusOK, status)
}

// Captcha issues a new CAPTCHA challenge.
// POST /v1/auth/captcha
func (h *Handler) Captcha(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.authService.GenerateCaptcha()
	if err != nil {
		h.logger.Error("failed to generate captcha", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to generate captcha")
		return
	}
	httputil.JSON(w, http.StatusOK, challenge)
}
