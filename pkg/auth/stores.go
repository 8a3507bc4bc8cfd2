package auth

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

// The services in this package depend on narrow store interfaces rather
// than concrete repositories, so the wiring stays an acyclic constructor
// graph and tests can substitute in-memory fakes. The pkg/repository types
// satisfy these interfaces.

// UserStore is the persistence surface for user records.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetPendingByVerificationTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
	SetVerificationToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiry sql.NullTime) error
	MarkEmailVerified(ctx context.Context, userID uuid.UUID) error
	SetMFAEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error
}

// SessionStore is the persistence surface for sessions and password-reset
// artifacts.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string, purpose domain.SessionPurpose) (*domain.Session, error)
	FindLiveByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*domain.Session, error)
	ReuseOrCreate(ctx context.Context, session *domain.Session) (reused bool, err error)
	Rotate(ctx context.Context, sessionID, userID uuid.UUID, newTokenHash string, newExpiry sql.NullTime) error
	Revoke(ctx context.Context, sessionID, userID uuid.UUID) error
	RevokeByTokenHash(ctx context.Context, tokenHash string, userID uuid.UUID) error
	RevokeAll(ctx context.Context, userID uuid.UUID, exceptTokenHash *string) error
	ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// MFAStore is the persistence surface for MFA enrollment material. The
// implementation must make ReplaceSetup transactional: the secret write and
// the backup-code batch either both land or neither does.
type MFAStore interface {
	ReplaceSetup(ctx context.Context, userID uuid.UUID, encryptedSecret string, codes []*domain.BackupCode) error
	ListUnused(ctx context.Context, userID uuid.UUID) ([]*domain.BackupCode, error)
	MarkUsed(ctx context.Context, codeID, userID uuid.UUID) error
	CountUnused(ctx context.Context, userID uuid.UUID) (int, error)
}

// AuditSink records state transitions. Implementations are best-effort:
// recording never fails the primary operation.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent)
}

// EmailSender delivers outbound notification email. Fire-and-forget from
// the orchestrator's perspective.
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, email, name, link string) error
	SendPasswordResetEmail(ctx context.Context, email, name, link string) error
}
