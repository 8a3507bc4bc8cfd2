package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

// User represents the account.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Status       UserStatus

	MFAEnabled bool
	// MFASecret holds the AES-GCM-encrypted TOTP secret. Set during MFA
	// setup, never cleared once MFA is enabled.
	MFASecret *string

	// Email verification fields are populated only while Status is pending.
	VerificationTokenHash   *string
	VerificationTokenExpiry *time.Time
	EmailVerifiedAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// CanLogin reports whether the account may complete a password login.
// Only active accounts may; pending accounts are limited to email
// verification.
func (u *User) CanLogin() bool {
	return u.Status == UserStatusActive && u.DeletedAt == nil
}

// VerificationTokenValid reports whether the stored email-verification
// token is still usable.
func (u *User) VerificationTokenValid() bool {
	if u.Status != UserStatusPending || u.VerificationTokenHash == nil || u.VerificationTokenExpiry == nil {
		return false
	}
	return time.Now().Before(*u.VerificationTokenExpiry)
}
