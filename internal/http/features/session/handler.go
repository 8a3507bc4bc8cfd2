package session

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/internal/http/middleware"
	"github.com/backoffice-kit/authcore/internal/httputil"
	"github.com/backoffice-kit/authcore/pkg/auth"
	"github.com/backoffice-kit/authcore/pkg/domain"
)

// Handler handles token refresh, logout, and session management endpoints.
type Handler struct {
	logger         *slog.Logger
	authService    *auth.AuthService
	sessionService *auth.SessionService
	audit          auth.AuditSink
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, authService *auth.AuthService, sessionService *auth.SessionService, audit auth.AuditSink) *Handler {
	return &Handler{
		logger:         logger,
		authService:    authService,
		sessionService: sessionService,
		audit:          audit,
	}
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new token pair.
// POST /v1/auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), req.RefreshToken, auth.FingerprintFromRequest(r))
	if err != nil {
		httputil.DomainError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tokens)
}

// LogoutRequest represents a logout request.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the presented refresh token. Idempotent.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.authService.Logout(r.Context(), userID, req.RefreshToken, auth.FingerprintFromRequest(r))
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// SessionResponse is the listing shape for one active session.
type SessionResponse struct {
	ID         uuid.UUID `json:"id"`
	DeviceInfo string    `json:"device_info"`
	Browser    string    `json:"browser"`
	IP         string    `json:"ip"`
	RememberMe bool      `json:"remember_me"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// List returns the caller's active sessions, most recently used first.
// GET /v1/sessions
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.sessionService.ListActive(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list sessions", "user_id", userID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			ID:         s.ID,
			DeviceInfo: s.DeviceInfo,
			Browser:    s.Browser,
			IP:         s.IP,
			RememberMe: s.RememberMe,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			ExpiresAt:  s.ExpiresAt,
		})
	}
	httputil.JSON(w, http.StatusOK, out)
}

// Terminate revokes one of the caller's sessions by ID.
// DELETE /v1/sessions/{id}
func (h *Handler) Terminate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if err := h.sessionService.Terminate(r.Context(), sessionID, userID); err != nil {
		httputil.DomainError(w, err)
		return
	}

	h.audit.Record(r.Context(), domain.AuditEvent{
		Action:     domain.AuditSessionTerminated,
		UserID:     &userID,
		ResourceID: sessionID.String(),
		IP:         auth.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "session terminated"})
}
