package domain

import (
	"time"

	"github.com/google/uuid"
)

// BackupCode is a single-use MFA recovery code, stored as a bcrypt hash.
type BackupCode struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CodeHash  string
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// MFASetupState describes where a user is in the MFA enrollment flow.
type MFASetupState string

const (
	// MFANotConfigured: no secret stored, mfa_enabled false.
	MFANotConfigured MFASetupState = "not_configured"
	// MFAPendingVerification: secret and backup codes stored, mfa_enabled
	// still false until a correct TOTP code confirms the enrollment.
	MFAPendingVerification MFASetupState = "pending_verification"
	// MFAEnabled: enrollment confirmed, second factor required at login.
	MFAEnabled MFASetupState = "enabled"
)

// SetupState derives the enrollment state from the user record.
func (u *User) SetupState() MFASetupState {
	switch {
	case u.MFAEnabled:
		return MFAEnabled
	case u.MFASecret != nil:
		return MFAPendingVerification
	default:
		return MFANotConfigured
	}
}

// MFASetupResult is returned when MFA setup is initiated.
type MFASetupResult struct {
	Secret        string   `json:"secret"`
	QRCodeDataURI string   `json:"qr_code"`
	BackupCodes   []string `json:"backup_codes"`
}
