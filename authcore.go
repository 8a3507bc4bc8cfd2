// Package authcore provides a multi-tenant back-office authentication
// subsystem: password login with adaptive throttling and CAPTCHA gating,
// TOTP-based MFA with backup codes, fingerprinted sessions with refresh
// rotation, email verification, and password reset.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create an instance and mount its routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	core, err := authcore.New(authcore.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	http.ListenAndServe(":8080", core.Router())
package authcore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	authhttp "github.com/backoffice-kit/authcore/internal/http"
	"github.com/backoffice-kit/authcore/internal/http/middleware"
	"github.com/backoffice-kit/authcore/internal/notification"
	"github.com/backoffice-kit/authcore/pkg/auth"
	"github.com/backoffice-kit/authcore/pkg/repository"
)

// Config holds the configuration for the authcore library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret is the secret key for signing access tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in tokens (default: "authcore").
	JWTIssuer string

	// MFATokenSecret signs the short-lived MFA temp tokens. Defaults to
	// JWTSecret when empty; a dedicated secret limits the blast radius of
	// a leak.
	MFATokenSecret string

	// MFAEncryptionKey encrypts TOTP secrets at rest (64-char hex, 32
	// bytes). MFA endpoints are disabled when empty.
	MFAEncryptionKey string

	// MFAIssuer is the issuer shown in authenticator apps (default: "Backoffice").
	MFAIssuer string

	// AccessTokenTTL is the lifetime of access tokens (default: 15 minutes).
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh tokens (default: 24 hours).
	RefreshTokenTTL time.Duration

	// RememberMeRefreshTokenTTL is the refresh lifetime for remember-me
	// sessions (default: 30 days).
	RememberMeRefreshTokenTTL time.Duration

	// BcryptCost is the password hashing cost (default: 12).
	BcryptCost int

	// PasswordPolicy overrides the default complexity policy (min 8 chars,
	// upper, lower, number).
	PasswordPolicy *auth.PasswordPolicy

	// Throttle overrides the per-IP login throttle defaults (CAPTCHA after
	// 2 failures, 10s delay, 15 minute window).
	Throttle auth.ThrottleConfig

	// MFATempTokenTTL is the lifetime of the temp token bridging the two
	// login steps (default: 300 seconds).
	MFATempTokenTTL time.Duration

	// MFAMaxAttempts and MFALockoutDuration bound failed MFA verification
	// (defaults: 5 attempts, 15 minute lockout).
	MFAMaxAttempts     int
	MFALockoutDuration time.Duration

	// AppBaseURL is the public base URL for verification and reset links.
	AppBaseURL string

	// EmailVerificationTTL and PasswordResetTTL bound the emailed tokens
	// (defaults: 24 hours, 1 hour).
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration

	// SMTP enables outbound email (optional). Verification and reset mail
	// are skipped when nil.
	SMTP *SMTPConfig

	// MaxRequestBodySize caps request bodies (default: 64 KiB).
	MaxRequestBodySize int64

	// Logger is the structured logger (default: slog JSON to stdout).
	Logger *slog.Logger
}

// SMTPConfig holds outbound email configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// Core is the assembled authentication subsystem.
type Core struct {
	config         Config
	db             *sql.DB
	logger         *slog.Logger
	usersRepo      *repository.UsersRepository
	sessionsRepo   *repository.SessionsRepository
	authService    *auth.AuthService
	sessionService *auth.SessionService
	mfaService     *auth.MFAService
	throttle       *auth.LoginThrottle
	captcha        *auth.CaptchaStore
	auditor        *auth.Auditor
}

// New wires repositories, services, and the audit sink from the given
// configuration. Returns an error if required database tables don't exist;
// run migrations first (see migrations/ folder).
func New(cfg Config) (*Core, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	usersRepo := repository.NewUsersRepository(cfg.DB)
	sessionsRepo := repository.NewSessionsRepository(cfg.DB)
	backupCodesRepo := repository.NewBackupCodesRepository(cfg.DB)
	auditLogsRepo := repository.NewAuditLogsRepository(cfg.DB)
	mfaStore := repository.NewMFAStore(cfg.DB, usersRepo, backupCodesRepo)

	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost, cfg.PasswordPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	accessCodec := auth.NewTokenCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	tempCodec := auth.NewTokenCodec([]byte(cfg.MFATokenSecret), cfg.JWTIssuer)

	throttle := auth.NewLoginThrottle(cfg.Throttle)
	captcha := auth.NewCaptchaStore()
	auditor := auth.NewAuditor(auditLogsRepo, cfg.Logger)

	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL:            cfg.AccessTokenTTL,
		RefreshTokenTTL:           cfg.RefreshTokenTTL,
		RememberMeRefreshTokenTTL: cfg.RememberMeRefreshTokenTTL,
	}, sessionsRepo, usersRepo, accessCodec)

	var mfaService *auth.MFAService
	if cfg.MFAEncryptionKey != "" {
		key, err := hex.DecodeString(cfg.MFAEncryptionKey)
		if err != nil || len(key) != 32 {
			return nil, errors.New("authcore: MFAEncryptionKey must be 64 hex characters (32 bytes)")
		}
		mfaService = auth.NewMFAService(auth.MFAConfig{
			Issuer:          cfg.MFAIssuer,
			EncryptionKey:   key,
			TempTokenTTL:    cfg.MFATempTokenTTL,
			MaxAttempts:     cfg.MFAMaxAttempts,
			LockoutDuration: cfg.MFALockoutDuration,
		}, usersRepo, mfaStore, hasher, tempCodec)
	}

	var emailSender auth.EmailSender
	if cfg.SMTP != nil {
		emailSender = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		})
	}

	authService := auth.NewAuthService(auth.AuthConfig{
		AppBaseURL:           cfg.AppBaseURL,
		EmailVerificationTTL: cfg.EmailVerificationTTL,
		PasswordResetTTL:     cfg.PasswordResetTTL,
	}, usersRepo, sessionService, hasher, mfaService, throttle, captcha, auditor, emailSender, cfg.Logger)

	return &Core{
		config:         cfg,
		db:             cfg.DB,
		logger:         cfg.Logger,
		usersRepo:      usersRepo,
		sessionsRepo:   sessionsRepo,
		authService:    authService,
		sessionService: sessionService,
		mfaService:     mfaService,
		throttle:       throttle,
		captcha:        captcha,
		auditor:        auditor,
	}, nil
}

// Router returns an http.Handler with all routes registered:
//
//	POST   /v1/auth/register             - Register (account starts pending)
//	POST   /v1/auth/verify-email         - Activate account with emailed token
//	POST   /v1/auth/resend-verification  - Re-send verification mail
//	POST   /v1/auth/login                - Login with email/password
//	POST   /v1/auth/login/mfa            - Second login step with TOTP or backup code
//	GET    /v1/auth/login/status         - Throttle status for the caller's IP
//	POST   /v1/auth/captcha              - Issue an arithmetic CAPTCHA challenge
//	POST   /v1/auth/refresh              - Rotate the refresh token
//	POST   /v1/auth/logout               - Revoke the presented session (protected)
//	POST   /v1/auth/password/forgot      - Request a password-reset mail
//	POST   /v1/auth/password/reset       - Reset password with emailed token
//	POST   /v1/auth/password/change      - Change password (protected)
//	GET    /v1/sessions                  - List active sessions (protected)
//	DELETE /v1/sessions/{id}             - Terminate one session (protected)
//	POST   /v1/mfa/setup                 - Begin TOTP enrollment (protected)
//	POST   /v1/mfa/verify                - Confirm enrollment (protected)
//	GET    /v1/mfa/status                - Enrollment state (protected)
//	GET    /health                       - Health check
func (c *Core) Router() http.Handler {
	return authhttp.NewRouter(authhttp.RouterConfig{
		Logger:             c.logger,
		AuthService:        c.authService,
		SessionService:     c.sessionService,
		MFAService:         c.mfaService,
		Audit:              c.auditor,
		MaxRequestBodySize: c.config.MaxRequestBodySize,
	})
}

// AuthService returns the orchestrator for advanced usage.
func (c *Core) AuthService() *auth.AuthService {
	return c.authService
}

// SessionService returns the session service for advanced usage.
func (c *Core) SessionService() *auth.SessionService {
	return c.sessionService
}

// AuthMiddleware returns middleware that validates bearer access tokens.
// Use it to protect routes outside authcore:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(core.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (c *Core) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(c.sessionService)
}

// GetUserID extracts the authenticated user ID from a context populated by
// AuthMiddleware.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetUserID(ctx)
}

// RunMaintenance purges expired and revoked sessions and sweeps the
// in-memory throttle and CAPTCHA state on the given interval until ctx is
// cancelled.
func (c *Core) RunMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := c.sessionService.PurgeExpired(ctx)
			if err != nil {
				c.logger.Error("session purge failed", "error", err)
			} else if purged > 0 {
				c.logger.Info("purged sessions", "count", purged)
			}
			c.throttle.Cleanup()
			c.captcha.Cleanup()
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("authcore: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("authcore: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("authcore: JWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "authcore"
	}
	if cfg.MFATokenSecret == "" {
		cfg.MFATokenSecret = cfg.JWTSecret
	}
	if cfg.MFAIssuer == "" {
		cfg.MFAIssuer = "Backoffice"
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.PasswordPolicy == nil {
		cfg.PasswordPolicy = auth.DefaultPasswordPolicy()
	}
	if cfg.MaxRequestBodySize == 0 {
		cfg.MaxRequestBodySize = 64 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"users", "sessions", "backup_codes", "audit_logs"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("authcore: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("authcore: failed to check schema: %w", err)
		}
	}

	return nil
}
