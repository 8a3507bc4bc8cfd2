package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction is a closed enumeration of recorded state transitions.
type AuditAction string

const (
	AuditLoginSuccess       AuditAction = "login.success"
	AuditLoginFailure       AuditAction = "login.failure"
	AuditLogout             AuditAction = "logout"
	AuditTokenRefresh       AuditAction = "token.refresh"
	AuditSessionTerminated  AuditAction = "session.terminated"
	AuditMFASetupInitiated  AuditAction = "mfa.setup_initiated"
	AuditMFAEnabled         AuditAction = "mfa.enabled"
	AuditMFASuccess         AuditAction = "mfa.success"
	AuditMFAFailure         AuditAction = "mfa.failure"
	AuditMFALockout         AuditAction = "mfa.lockout"
	AuditPasswordChanged    AuditAction = "password.changed"
	AuditPasswordResetAsked AuditAction = "password.reset_requested"
	AuditPasswordReset      AuditAction = "password.reset"
	AuditUserRegistered     AuditAction = "user.registered"
	AuditEmailVerified      AuditAction = "email.verified"
)

// AuditEvent is a single append-only audit record. Writing it never blocks
// the primary outcome; failures are logged as warnings.
type AuditEvent struct {
	ID         uuid.UUID
	Action     AuditAction
	UserID     *uuid.UUID
	Resource   string
	ResourceID string
	Details    string
	IP         string
	UserAgent  string
	CreatedAt  time.Time
}
