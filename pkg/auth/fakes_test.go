package auth

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

// In-memory stand-ins for the pkg/repository types, backing the service
// tests without a database.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := *user
	u.Email = strings.ToLower(u.Email)
	f.users[u.ID] = &u
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserStore) GetPendingByVerificationTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Status == domain.UserStatusPending &&
			u.VerificationTokenHash != nil && *u.VerificationTokenHash == tokenHash &&
			u.VerificationTokenExpiry != nil && time.Now().Before(*u.VerificationTokenExpiry) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserStore) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUserStore) SetVerificationToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiry sql.NullTime) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.VerificationTokenHash = &tokenHash
	if expiry.Valid {
		t := expiry.Time
		u.VerificationTokenExpiry = &t
	} else {
		u.VerificationTokenExpiry = nil
	}
	return nil
}

func (f *fakeUserStore) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok || u.Status != domain.UserStatusPending {
		return domain.ErrUserNotFound
	}
	now := time.Now()
	u.Status = domain.UserStatusActive
	u.VerificationTokenHash = nil
	u.VerificationTokenExpiry = nil
	u.EmailVerifiedAt = &now
	return nil
}

func (f *fakeUserStore) SetMFAEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.MFAEnabled = enabled
	return nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (f *fakeSessionStore) Create(ctx context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := *session
	f.sessions[s.ID] = &s
	return nil
}

func (f *fakeSessionStore) GetByTokenHash(ctx context.Context, tokenHash string, purpose domain.SessionPurpose) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.TokenHash == tokenHash && s.Purpose == purpose {
			copied := *s
			return &copied, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (f *fakeSessionStore) FindLiveByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.findLiveLocked(userID, fingerprint)
	if s == nil {
		return nil, domain.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionStore) findLiveLocked(userID uuid.UUID, fingerprint string) *domain.Session {
	for _, s := range f.sessions {
		if s.UserID == userID && s.Fingerprint == fingerprint &&
			s.Purpose == domain.SessionPurposeSession && s.IsValid() {
			return s
		}
	}
	return nil
}

func (f *fakeSessionStore) ReuseOrCreate(ctx context.Context, session *domain.Session) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing := f.findLiveLocked(session.UserID, session.Fingerprint); existing != nil {
		existing.TokenHash = session.TokenHash
		existing.ExpiresAt = session.ExpiresAt
		existing.RememberMe = session.RememberMe
		existing.IP = session.IP
		existing.LastUsedAt = session.LastUsedAt
		session.ID = existing.ID
		session.CreatedAt = existing.CreatedAt
		return true, nil
	}
	s := *session
	f.sessions[s.ID] = &s
	return false, nil
}

func (f *fakeSessionStore) Rotate(ctx context.Context, sessionID, userID uuid.UUID, newTokenHash string, newExpiry sql.NullTime) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID || s.RevokedAt != nil {
		return domain.ErrSessionNotFound
	}
	s.TokenHash = newTokenHash
	if newExpiry.Valid {
		s.ExpiresAt = newExpiry.Time
	}
	s.LastUsedAt = time.Now()
	return nil
}

func (f *fakeSessionStore) Revoke(ctx context.Context, sessionID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID || s.RevokedAt != nil {
		return domain.ErrSessionNotFound
	}
	now := time.Now()
	s.RevokedAt = &now
	return nil
}

func (f *fakeSessionStore) RevokeByTokenHash(ctx context.Context, tokenHash string, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.TokenHash == tokenHash && s.UserID == userID && s.RevokedAt == nil {
			now := time.Now()
			s.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeSessionStore) RevokeAll(ctx context.Context, userID uuid.UUID, exceptTokenHash *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, s := range f.sessions {
		if s.UserID != userID || s.RevokedAt != nil {
			continue
		}
		if exceptTokenHash != nil && s.TokenHash == *exceptTokenHash {
			continue
		}
		s.RevokedAt = &now
	}
	return nil
}

func (f *fakeSessionStore) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.Purpose == domain.SessionPurposeSession && s.IsValid() {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsedAt.After(out[j].LastUsedAt) })
	return out, nil
}

func (f *fakeSessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var purged int64
	for id, s := range f.sessions {
		if time.Now().After(s.ExpiresAt) {
			delete(f.sessions, id)
			purged++
		}
	}
	return purged, nil
}

// fakeMFAStore mirrors the repository MFAStore: the encrypted secret lands
// on the user row, the codes in their own collection.
type fakeMFAStore struct {
	mu    sync.Mutex
	users *fakeUserStore
	codes map[uuid.UUID][]*domain.BackupCode
}

func newFakeMFAStore(users *fakeUserStore) *fakeMFAStore {
	return &fakeMFAStore{users: users, codes: make(map[uuid.UUID][]*domain.BackupCode)}
}

func (f *fakeMFAStore) ReplaceSetup(ctx context.Context, userID uuid.UUID, encryptedSecret string, codes []*domain.BackupCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.users.mu.Lock()
	u, ok := f.users.users[userID]
	if !ok {
		f.users.mu.Unlock()
		return domain.ErrUserNotFound
	}
	u.MFASecret = &encryptedSecret
	f.users.mu.Unlock()

	replaced := make([]*domain.BackupCode, len(codes))
	for i, c := range codes {
		copied := *c
		replaced[i] = &copied
	}
	f.codes[userID] = replaced
	return nil
}

func (f *fakeMFAStore) ListUnused(ctx context.Context, userID uuid.UUID) ([]*domain.BackupCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.BackupCode
	for _, c := range f.codes[userID] {
		if !c.Used {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeMFAStore) MarkUsed(ctx context.Context, codeID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.codes[userID] {
		if c.ID == codeID && !c.Used {
			now := time.Now()
			c.Used = true
			c.UsedAt = &now
			return nil
		}
	}
	return domain.ErrInvalidMFACode
}

func (f *fakeMFAStore) CountUnused(ctx context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.codes[userID] {
		if !c.Used {
			count++
		}
	}
	return count, nil
}

type fakeAuditSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (f *fakeAuditSink) Record(ctx context.Context, event domain.AuditEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeAuditSink) count(action domain.AuditAction) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Action == action {
			n++
		}
	}
	return n
}

type fakeEmailSender struct {
	mu                sync.Mutex
	verificationLinks []string
	resetLinks        []string
	fail              bool
}

func (f *fakeEmailSender) SendVerificationEmail(ctx context.Context, email, name, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return context.DeadlineExceeded
	}
	f.verificationLinks = append(f.verificationLinks, link)
	return nil
}

func (f *fakeEmailSender) SendPasswordResetEmail(ctx context.Context, email, name, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return context.DeadlineExceeded
	}
	f.resetLinks = append(f.resetLinks, link)
	return nil
}

func (f *fakeEmailSender) lastVerificationLink() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.verificationLinks) == 0 {
		return ""
	}
	return f.verificationLinks[len(f.verificationLinks)-1]
}

func (f *fakeEmailSender) lastResetLink() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.resetLinks) == 0 {
		return ""
	}
	return f.resetLinks[len(f.resetLinks)-1]
}
