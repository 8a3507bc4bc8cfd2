package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

// Default lifetimes for the email-verification and password-reset tokens.
const (
	DefaultEmailVerificationTTL = 24 * time.Hour
	DefaultPasswordResetTTL     = time.Hour
)

// AuthConfig holds orchestrator configuration.
type AuthConfig struct {
	AppBaseURL           string
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
}

// AuthService composes the password hasher, session service, MFA engine,
// login throttle, and audit sink into the login, refresh, logout,
// password-reset, and registration flows. It is the only component with
// cross-cutting business rules.
type AuthService struct {
	config   AuthConfig
	users    UserStore
	sessions *SessionService
	hasher   *PasswordHasher
	mfa      *MFAService
	throttle *LoginThrottle
	captcha  *CaptchaStore
	audit    AuditSink
	email    EmailSender
	logger   *slog.Logger
}

// NewAuthService creates the orchestrator. email may be nil when no sender
// is configured; sends are then skipped.
func NewAuthService(
	config AuthConfig,
	users UserStore,
	sessions *SessionService,
	hasher *PasswordHasher,
	mfa *MFAService,
	throttle *LoginThrottle,
	captcha *CaptchaStore,
	audit AuditSink,
	email EmailSender,
	logger *slog.Logger,
) *AuthService {
	if config.EmailVerificationTTL == 0 {
		config.EmailVerificationTTL = DefaultEmailVerificationTTL
	}
	if config.PasswordResetTTL == 0 {
		config.PasswordResetTTL = DefaultPasswordResetTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		config:   config,
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		mfa:      mfa,
		throttle: throttle,
		captcha:  captcha,
		audit:    audit,
		email:    email,
		logger:   logger,
	}
}

// LoginRequest carries the credentials and throttle artifacts of a login
// attempt.
type LoginRequest struct {
	Email         string
	Password      string
	RememberMe    bool
	CaptchaID     string
	CaptchaAnswer int
}

// Login authenticates by email and password. Unknown email, wrong password,
// and non-active status all collapse into ErrInvalidCredentials so the
// caller learns nothing about which check failed. When the account has MFA
// enabled no tokens are issued; the result carries a temp token instead.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, fp Fingerprint) (*domain.LoginResult, error) {
	status := s.throttle.Status(fp.IP)
	if status.RequiresCaptcha {
		if req.CaptchaID == "" {
			return nil, domain.ErrCaptchaRequired
		}
		if !s.captcha.Verify(req.CaptchaID, req.CaptchaAnswer) {
			return nil, domain.ErrCaptchaInvalid
		}
		// Fixed delay before the credential check once gated.
		time.Sleep(status.Delay)
	}

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, s.failLogin(ctx, nil, fp, "unknown email")
		}
		return nil, err
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, s.failLogin(ctx, &user.ID, fp, "wrong password")
	}

	// Status is checked after password verification so the uniform error
	// reveals nothing extra about the account.
	if !user.CanLogin() {
		return nil, s.failLogin(ctx, &user.ID, fp, fmt.Sprintf("status %s", user.Status))
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		if hash, err := s.hasher.Hash(req.Password); err == nil {
			if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
				s.logger.Warn("failed to rehash password", "user_id", user.ID, "error", err)
			}
		}
	}

	if user.MFAEnabled {
		// An MFA-enabled account cannot complete a login when the MFA
		// engine is not wired; refuse uniformly instead of dereferencing.
		if s.mfa == nil {
			s.logger.Error("mfa-enabled user but no mfa service configured", "user_id", user.ID)
			return nil, s.failLogin(ctx, &user.ID, fp, "mfa not configured")
		}
		tempToken, err := s.mfa.CreateTempToken(user.ID, user.Email)
		if err != nil {
			return nil, err
		}
		return &domain.LoginResult{MFARequired: true, TempToken: tempToken}, nil
	}

	tokens, err := s.sessions.Issue(ctx, user, fp, req.RememberMe)
	if err != nil {
		return nil, err
	}

	s.throttle.Clear(fp.IP)
	s.audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditLoginSuccess,
		UserID: &user.ID,
		IP:     fp.IP, UserAgent: fp.UserAgent,
	})

	return &domain.LoginResult{Tokens: tokens}, nil
}

// LoginStatus is a pure read of the throttle state for the client, used by
// the login form to decide whether to render a CAPTCHA.
func (s *AuthService) LoginStatus(ip string) ThrottleStatus {
	return s.throttle.Status(ip)
}

// GenerateCaptcha issues a new CAPTCHA challenge.
func (s *AuthService) GenerateCaptcha() (CaptchaChallenge, error) {
	return s.captcha.Generate()
}

// MFALoginRequest carries the second-factor proof: the temp token from the
// first step plus either a TOTP code or a backup code.
type MFALoginRequest struct {
	TempToken  string
	Code       string
	BackupCode string
	RememberMe bool
}

// MFALoginResult is a completed second-factor login. BackupCodesRemaining
// is set only when a backup code was consumed.
type MFALoginResult struct {
	Tokens               *domain.TokenPair
	BackupCodesRemaining *int
}

// LoginMFA completes an MFA login. On success the token-issuance path is
// identical to a non-MFA login, including fingerprint-based session reuse.
func (s *AuthService) LoginMFA(ctx context.Context, req MFALoginRequest, fp Fingerprint) (*MFALoginResult, error) {
	if s.mfa == nil {
		return nil, domain.ErrInvalidTempToken
	}
	userID, err := s.mfa.ValidateTempToken(req.TempToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidTempToken
		}
		return nil, err
	}
	if !user.CanLogin() || !user.MFAEnabled {
		return nil, domain.ErrInvalidTempToken
	}

	usedBackupCode := req.BackupCode != ""
	if usedBackupCode {
		err = s.mfa.VerifyBackupCode(ctx, user, req.BackupCode)
	} else {
		err = s.mfa.VerifyTOTP(ctx, user, req.Code)
	}
	if err != nil {
		action := domain.AuditMFAFailure
		if errors.Is(err, domain.ErrMFALockedOut) {
			action = domain.AuditMFALockout
		}
		s.audit.Record(ctx, domain.AuditEvent{
			Action: action,
			UserID: &user.ID,
			IP:     fp.IP, UserAgent: fp.UserAgent,
		})
		return nil, err
	}

	tokens, err := s.sessions.Issue(ctx, user, fp, req.RememberMe)
	if err != nil {
		return nil, err
	}

	s.throttle.Clear(fp.IP)
	s.audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditMFASuccess,
		UserID: &user.ID,
		IP:     fp.IP, UserAgent: fp.UserAgent,
	})
	s.audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditLoginSuccess,
		UserID: &user.ID,
		IP:     fp.IP, UserAgent: fp.UserAgent,
	})

	result := &MFALoginResult{Tokens: tokens}
	if usedBackupCode {
		if remaining, err := s.mfa.RemainingBackupCodes(ctx, user.ID); err == nil {
			result.BackupCodesRemaining = &remaining
		}
	}
	return result, nil
}

// Refresh exchanges a live refresh token for a new token pair, rotating the
// refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, fp Fingerprint) (*domain.TokenPair, error) {
	tokens, user, err := s.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditTokenRefresh,
		UserID: &user.ID,
		IP:     fp.IP, UserAgent: fp.UserAgent,
	})
	return tokens, nil
}

// Logout revokes exactly the presented refresh token for the calling user.
// Always succeeds from the caller's perspective, even when the token was
// already invalid.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, refreshToken string, fp Fingerprint) {
	if err := s.sessions.RevokeByToken(ctx, userID, refreshToken); err != nil {
		s.logger.Warn("failed to revoke session on logout", "user_id", userID, "error", err)
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditLogout,
		UserID: &userID,
		IP:     fp.IP, UserAgent: fp.UserAgent,
	})
}

// ForgotPassword creates a single-use, time-boxed reset artifact and emails
// the reset link. It reveals nothing about whether the email exists: the
// caller sees the same outcome either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, fp Fingerprint) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !user.CanLogin() {
		return nil
	}

	rawToken, err := GenerateToken(32)
	if err != nil {
		return err
	}

	// The reset artifact reuses the sessions table with a sentinel purpose,
	// which keeps it out of session listings and fingerprint reuse.
	now := time.Now()
	artifact := &domain.Session{
		ID:         uuid.New(),
		UserID:     user.ID,
		TokenHash:  HashToken(rawToken),
		Purpose:    domain.SessionPurposePasswordReset,
		DeviceInfo: string(domain.SessionPurposePasswordReset),
		IP:         fp.IP,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.config.PasswordResetTTL),
		LastUsedAt: now,
	}
	if err := s.sessions.sessions.Create(ctx, artifact); err != nil {
		return fmt.Errorf("failed to create reset artifact: %w", err)
	}

	s.sendEmail(ctx, "password reset", func(ctx context.Context) error {
		if s.email == nil {
			return nil
		}
		link := fmt.Sprintf("%s/reset-password?token=%s", s.config.AppBaseURL, rawToken)
		return s.email.SendPasswordResetEmail(ctx, user.Email, user.Name, link)
	})

	s.audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditPasswordResetAsked,
		UserID: &user.ID,
		IP:     fp.IP, UserAgent: fp.UserAgent,
	})
	return nil
}

// ResetPassword validates a reset artifact, updates the password, consumes
// the artifact, and revokes every live session for the user. The reset is
// authoritative: all previously issued refresh tokens stop working.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword, confirm string, fp Fingerprint) error {
	if newPassword != confirm {
		return domain.ErrPasswordMismatch
	}
	if violations := s.hasher.Validate(newPassword); len(violations) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrWeakPassword, strings.Join(violations, "; "))
	}

	artifact, err := s.sessions.sessions.GetByTokenHash(ctx, HashToken(rawToken), domain.SessionPurposePasswordReset)
	if err != nil || !artifact.IsValid() {
		return domain.ErrResetTokenInvalid
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, artifact.UserID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// Consume the artifact, then force every device to re-authenticate.
	if err := s.sessions.sessions.Revoke(ctx, artifact.ID, artifact.UserID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	if err := s.sessions.sessions.RevokeAll(ctx, artifact.UserID, nil); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditPasswordReset,
		UserID: &artifact.UserID,
		IP:     fp.IP, UserAgent: fp.UserAgent,
	})
	return nil
}

// ChangePassword updates the password of an authenticated user after
// re-checking the current one, and logs out every other device.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword, confirm, currentRefreshToken string, fp Fingerprint) error {
	if newPassword != confirm {
		return domain.ErrPasswordMismatch
	}
	if violations := s.hasher.Validate(newPassword); len(violations) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrWeakPassword, strings.Join(violations, "; "))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.sessions.RevokeAll(ctx, userID, currentRefreshToken); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditPasswordChanged,
		UserID: &userID,
		IP:     fp.IP, UserAgent: fp.UserAgent,
	})
	return nil
}

// RegisterRequest carries the fields of a registration attempt.
type RegisterRequest struct {
	Email           string
	Name            string
	Password        string
	ConfirmPassword string
}

// Register creates a pending user and sends a verification email. A
// pending email registered again silently resends verification instead of
// erroring; an active email is a conflict. Email-send failure does not fail
// registration, since verification can be resent.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, fp Fingerprint) error {
	if err := ValidateEmail(strings.TrimSpace(req.Email)); err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return domain.ErrPasswordMismatch
	}
	if violations := s.hasher.Validate(req.Password); len(violations) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrWeakPassword, strings.Join(violations, "; "))
	}

	email := NormalizeEmail(req.Email)
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}
	if existing != nil {
		if existing.Status == domain.UserStatusPending {
			return s.issueVerification(ctx, existing)
		}
		return domain.ErrEmailAlreadyRegistered
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return err
	}
	rawToken, err := GenerateToken(32)
	if err != nil {
		return err
	}

	now := time.Now()
	tokenHash := HashToken(rawToken)
	expiry := now.Add(s.config.EmailVerificationTTL)
	user := &domain.User{
		ID:                      uuid.New(),
		Email:                   email,
		Name:                    SanitizeName(req.Name),
		PasswordHash:            hash,
		Status:                  domain.UserStatusPending,
		VerificationTokenHash:   &tokenHash,
		VerificationTokenExpiry: &expiry,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.sendEmail(ctx, "verification", func(ctx context.Context) error {
		if s.email == nil {
			return nil
		}
		link := fmt.Sprintf("%s/verify-email?token=%s", s.config.AppBaseURL, rawToken)
		return s.email.SendVerificationEmail(ctx, user.Email, user.Name, link)
	})

	s.audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditUserRegistered,
		UserID: &user.ID,
		IP:     fp.IP, UserAgent: fp.UserAgent,
	})
	return nil
}

// VerifyEmail flips a pending user to active if the token matches and has
// not expired.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string, fp Fingerprint) error {
	user, err := s.users.GetPendingByVerificationTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		return domain.ErrVerificationInvalid
	}
	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return domain.ErrVerificationInvalid
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditEmailVerified,
		UserID: &user.ID,
		IP:     fp.IP, UserAgent: fp.UserAgent,
	})
	return nil
}

// ResendVerification regenerates the verification token for a pending user
// and resends the email. The response is identical whether or not the
// email matched a pending account.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if user.Status != domain.UserStatusPending {
		return nil
	}
	return s.issueVerification(ctx, user)
}

// issueVerification stores a fresh verification token (replacing any
// previous one) and sends the email.
func (s *AuthService) issueVerification(ctx context.Context, user *domain.User) error {
	rawToken, err := GenerateToken(32)
	if err != nil {
		return err
	}
	tokenHash := HashToken(rawToken)
	expiry := sql.NullTime{Time: time.Now().Add(s.config.EmailVerificationTTL), Valid: true}
	if err := s.users.SetVerificationToken(ctx, user.ID, tokenHash, expiry); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	s.sendEmail(ctx, "verification", func(ctx context.Context) error {
		if s.email == nil {
			return nil
		}
		link := fmt.Sprintf("%s/verify-email?token=%s", s.config.AppBaseURL, rawToken)
		return s.email.SendVerificationEmail(ctx, user.Email, user.Name, link)
	})
	return nil
}

// sendEmail runs a best-effort send: failures are logged, never propagated.
func (s *AuthService) sendEmail(ctx context.Context, kind string, send func(ctx context.Context) error) {
	if err := send(ctx); err != nil {
		s.logger.Warn("failed to send email", "kind", kind, "error", err)
	}
}

// failLogin records a failed attempt against the throttle and audit sink
// and returns the uniform invalid-credentials error.
func (s *AuthService) failLogin(ctx context.Context, userID *uuid.UUID, fp Fingerprint, reason string) error {
	s.throttle.RecordFailure(fp.IP)
	s.audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditLoginFailure,
		UserID:  userID,
		Details: reason,
		IP:      fp.IP, UserAgent: fp.UserAgent,
	})
	return domain.ErrInvalidCredentials
}
