package domain

import (
	"errors"
	"fmt"
)

// Authentication errors (Unauthorized class: uniform external message, no
// detail about which check failed).
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidTempToken   = errors.New("invalid or expired MFA token")
	ErrInvalidMFACode     = errors.New("invalid MFA code")
	ErrSessionNotFound    = errors.New("session not found")

	// Refresh failures carry the reason for logs and tests but match
	// ErrInvalidToken, so nothing distinct leaks past the HTTP mapping.
	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrInvalidToken)
	ErrSessionRevoked = fmt.Errorf("%w: session revoked", ErrInvalidToken)
)

// Forbidden class: a known, named account state rather than a credential
// problem.
var (
	ErrMFALockedOut    = errors.New("too many failed MFA attempts, account temporarily locked")
	ErrCaptchaRequired = errors.New("captcha required")
	ErrCaptchaInvalid  = errors.New("captcha verification failed")
)

// Conflict class: safe to detail, caller holds authenticated context.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrMFAAlreadyEnabled      = errors.New("MFA is already enabled")
)

// BadRequest class: caller-fixable.
var (
	ErrMFANotConfigured    = errors.New("MFA setup has not been initiated")
	ErrWeakPassword        = errors.New("password does not meet requirements")
	ErrPasswordMismatch    = errors.New("password confirmation does not match")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrVerificationInvalid = errors.New("invalid or expired verification token")
	ErrResetTokenInvalid   = errors.New("invalid or expired password reset token")
)

// NotFound class, used only where existence is not sensitive.
var (
	ErrUserNotFound = errors.New("user not found")
)
