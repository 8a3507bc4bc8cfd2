package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice-kit/authcore/internal/http/features/account"
	"github.com/backoffice-kit/authcore/internal/http/features/login"
	"github.com/backoffice-kit/authcore/internal/http/features/mfa"
	"github.com/backoffice-kit/authcore/internal/http/features/password"
	"github.com/backoffice-kit/authcore/internal/http/features/session"
	"github.com/backoffice-kit/authcore/internal/http/middleware"
	"github.com/backoffice-kit/authcore/internal/httputil"
	"github.com/backoffice-kit/authcore/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger             *slog.Logger
	AuthService        *auth.AuthService
	SessionService     *auth.SessionService
	MFAService         *auth.MFAService
	Audit              auth.AuditSink
	MaxRequestBodySize int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Requests: 20, Window: time.Minute, Logger: cfg.Logger,
	})
	resetLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Requests: 5, Window: time.Minute, Logger: cfg.Logger,
	})
	refreshLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Requests: 60, Window: time.Minute, Logger: cfg.Logger,
	})

	// Registration and email verification
	accountHandler := account.NewHandler(cfg.Logger, cfg.AuthService)
	r.Group(func(r chi.Router) {
		r.Use(resetLimit)
		r.Post("/v1/auth/register", accountHandler.Register)
		r.Post("/v1/auth/verify-email", accountHandler.VerifyEmail)
		r.Post("/v1/auth/resend-verification", accountHandler.ResendVerification)
	})

	// Login, CAPTCHA, and the MFA challenge step
	loginHandler := login.NewHandler(cfg.Logger, cfg.AuthService)
	r.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/v1/auth/login", loginHandler.Login)
		r.Post("/v1/auth/login/mfa", loginHandler.LoginMFA)
		r.Get("/v1/auth/login/status", loginHandler.Status)
		r.Post("/v1/auth/captcha", loginHandler.Captcha)
	})

	// Password reset and change
	passwordHandler := password.NewHandler(cfg.Logger, cfg.AuthService)
	r.Group(func(r chi.Router) {
		r.Use(resetLimit)
		r.Post("/v1/auth/password/forgot", passwordHandler.Forgot)
		r.Post("/v1/auth/password/reset", passwordHandler.Reset)
	})
	r.With(middleware.Auth(cfg.SessionService)).
		Post("/v1/auth/password/change", passwordHandler.Change)

	// Token refresh, logout, and session management
	sessionHandler := session.NewHandler(cfg.Logger, cfg.AuthService, cfg.SessionService, cfg.Audit)
	r.With(refreshLimit).Post("/v1/auth/refresh", sessionHandler.Refresh)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.SessionService))
		r.Post("/v1/auth/logout", sessionHandler.Logout)
		r.Get("/v1/sessions", sessionHandler.List)
		r.Delete("/v1/sessions/{id}", sessionHandler.Terminate)
	})

	// Authenticated MFA management
	if cfg.MFAService != nil {
		mfaHandler := mfa.NewHandler(cfg.Logger, cfg.MFAService, cfg.Audit)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.SessionService))
			r.Post("/v1/mfa/setup", mfaHandler.Setup)
			r.Post("/v1/mfa/verify", mfaHandler.Verify)
			r.Get("/v1/mfa/status", mfaHandler.Status)
		})
	}

	return r
}
