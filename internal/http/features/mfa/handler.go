package mfa

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/backoffice-kit/authcore/internal/http/middleware"
	"github.com/backoffice-kit/authcore/internal/httputil"
	"github.com/backoffice-kit/authcore/pkg/auth"
	"github.com/backoffice-kit/authcore/pkg/domain"
)

// Handler handles MFA enrollment endpoints for authenticated users. The
// login-time second factor lives in the login feature.
type Handler struct {
	logger     *slog.Logger
	mfaService *auth.MFAService
	audit      auth.AuditSink
}

// NewHandler creates a new MFA handler.
func NewHandler(logger *slog.Logger, mfaService *auth.MFAService, audit auth.AuditSink) *Handler {
	return &Handler{logger: logger, mfaService: mfaService, audit: audit}
}

// Setup initiates MFA enrollment: generates the TOTP secret, the QR code,
// and ten backup codes. MFA is not enabled until the code is verified.
// POST /v1/mfa/setup
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.mfaService.Setup(r.Context(), userID)
	if err != nil {
		httputil.DomainError(w, err)
		return
	}

	h.audit.Record(r.Context(), domain.AuditEvent{
		Action: domain.AuditMFASetupInitiated,
		UserID: &userID,
		IP:     auth.ClientIP(r), UserAgent: r.UserAgent(),
	})
	httputil.JSON(w, http.StatusOK, result)
}

// VerifyRequest represents an enrollment verification request.
type VerifyRequest struct {
	Code string `json:"code"`
}

// Verify confirms enrollment with a TOTP code and enables MFA.
// POST /v1/mfa/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := h.mfaService.VerifyAndEnable(r.Context(), userID, req.Code); err != nil {
		httputil.DomainError(w, err)
		return
	}

	h.audit.Record(r.Context(), domain.AuditEvent{
		Action: domain.AuditMFAEnabled,
		UserID: &userID,
		IP:     auth.ClientIP(r), UserAgent: r.UserAgent(),
	})
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "MFA enabled"})
}

// Status reports how many unused backup codes remain.
// GET /v1/mfa/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	remaining, err := h.mfaService.RemainingBackupCodes(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to count backup codes", "user_id", userID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"backup_codes_remaining": remaining})
}
