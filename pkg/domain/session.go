package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionPurpose distinguishes regular sessions from password-reset
// artifacts stored in the same table. Reset rows never appear in session
// listings and are excluded from fingerprint-based reuse.
type SessionPurpose string

const (
	SessionPurposeSession       SessionPurpose = "session"
	SessionPurposePasswordReset SessionPurpose = "password_reset"
)

// Session represents a refresh-token row: one per authenticated
// device/browser combination per user, correlated by fingerprint.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	Purpose   SessionPurpose

	// Fingerprint is the SHA-256 hash of (user agent, IP) used to reuse an
	// existing live session instead of creating a new row on every login.
	Fingerprint string
	DeviceInfo  string
	Browser     string
	IP          string
	RememberMe  bool

	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	LastUsedAt time.Time
}

// IsValid checks if the session is valid (not expired and not revoked).
func (s *Session) IsValid() bool {
	if s.RevokedAt != nil {
		return false
	}
	return time.Now().Before(s.ExpiresAt)
}

// TokenPair represents the access and refresh token pair returned on a
// completed login or refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LoginResult is the outcome of a password login. Either Tokens is set, or
// MFARequired is true and TempToken carries the second-factor challenge.
type LoginResult struct {
	Tokens      *TokenPair
	MFARequired bool
	TempToken   string
}
