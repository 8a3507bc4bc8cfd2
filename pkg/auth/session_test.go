package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

const testUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"

func newTestSessionService(t *testing.T) (*SessionService, *fakeUserStore, *fakeSessionStore) {
	t.Helper()
	users := newFakeUserStore()
	sessions := newFakeSessionStore()
	codec := NewTokenCodec([]byte("access-secret-key-at-least-32-ch"), "authcore-test")
	service := NewSessionService(SessionConfig{}, sessions, users, codec)
	return service, users, sessions
}

func TestSessionService_IssueAndValidate(t *testing.T) {
	service, users, _ := newTestSessionService(t)
	user := seedActiveUser(t, users)
	fp := NewFingerprint("192.0.2.1", testUserAgent)

	pair, err := service.Issue(context.Background(), user, fp, false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("TokenType = %s, want Bearer", pair.TokenType)
	}
	if pair.ExpiresIn != int(DefaultAccessTokenTTL.Seconds()) {
		t.Errorf("ExpiresIn = %d, want %d", pair.ExpiresIn, int(DefaultAccessTokenTTL.Seconds()))
	}
	if len(pair.RefreshToken) != 128 {
		t.Errorf("Refresh token length = %d, want 128", len(pair.RefreshToken))
	}

	claims, err := service.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.Subject != user.ID.String() {
		t.Errorf("Subject = %s, want %s", claims.Subject, user.ID)
	}
	if claims.Email != user.Email {
		t.Errorf("Email = %s, want %s", claims.Email, user.Email)
	}
	if claims.SessionID == "" {
		t.Error("Expected a session ID claim")
	}
}

func TestSessionService_Issue_ReusesFingerprintedSession(t *testing.T) {
	service, users, sessions := newTestSessionService(t)
	user := seedActiveUser(t, users)
	fp := NewFingerprint("192.0.2.1", testUserAgent)
	ctx := context.Background()

	first, err := service.Issue(ctx, user, fp, false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	second, err := service.Issue(ctx, user, fp, false)
	if err != nil {
		t.Fatalf("Second Issue() error = %v", err)
	}

	active, err := service.ListActive(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("Expected one session after same-device relogin, got %d", len(active))
	}

	// The reused row carries the new bearer secret; the old one is dead.
	if _, err := sessions.GetByTokenHash(ctx, HashToken(first.RefreshToken), domain.SessionPurposeSession); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Error("Old refresh token hash should be gone after reuse")
	}
	if _, err := sessions.GetByTokenHash(ctx, HashToken(second.RefreshToken), domain.SessionPurposeSession); err != nil {
		t.Errorf("New refresh token hash should be present: %v", err)
	}

	// A different device gets its own row.
	otherFp := NewFingerprint("192.0.2.2", "Mozilla/5.0 (iPhone) Safari/604.1")
	if _, err := service.Issue(ctx, user, otherFp, false); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	active, _ = service.ListActive(ctx, user.ID)
	if len(active) != 2 {
		t.Errorf("Expected two sessions for two devices, got %d", len(active))
	}
}

func TestSessionService_Issue_RememberMeExtendsExpiry(t *testing.T) {
	service, users, _ := newTestSessionService(t)
	user := seedActiveUser(t, users)
	ctx := context.Background()

	_, err := service.Issue(ctx, user, NewFingerprint("192.0.2.1", testUserAgent), false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	_, err = service.Issue(ctx, user, NewFingerprint("192.0.2.2", "other agent"), true)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	active, _ := service.ListActive(ctx, user.ID)
	if len(active) != 2 {
		t.Fatalf("Expected two sessions, got %d", len(active))
	}
	var short, long time.Time
	for _, s := range active {
		if s.RememberMe {
			long = s.ExpiresAt
		} else {
			short = s.ExpiresAt
		}
	}
	if !long.After(short.Add(24 * time.Hour)) {
		t.Errorf("Remember-me expiry %v should be well beyond plain expiry %v", long, short)
	}
}

func TestSessionService_Refresh_RotatesToken(t *testing.T) {
	service, users, _ := newTestSessionService(t)
	user := seedActiveUser(t, users)
	ctx := context.Background()

	pair, err := service.Issue(ctx, user, NewFingerprint("192.0.2.1", testUserAgent), false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	rotated, _, err := service.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("Refresh should rotate the refresh token")
	}

	// Single use: the consumed token no longer refreshes.
	if _, _, err := service.Refresh(ctx, pair.RefreshToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("Refresh() with consumed token = %v, want ErrInvalidToken", err)
	}
	// The rotated token does.
	if _, _, err := service.Refresh(ctx, rotated.RefreshToken); err != nil {
		t.Errorf("Refresh() with rotated token = %v, want nil", err)
	}
}

func TestSessionService_Refresh_Rejections(t *testing.T) {
	service, users, sessions := newTestSessionService(t)
	user := seedActiveUser(t, users)
	ctx := context.Background()

	pair, err := service.Issue(ctx, user, NewFingerprint("192.0.2.1", testUserAgent), false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, _, err := service.Refresh(ctx, "unknown-token"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("Unknown token = %v, want ErrInvalidToken", err)
	}

	// Expired session.
	sessions.mu.Lock()
	for _, s := range sessions.sessions {
		s.ExpiresAt = time.Now().Add(-time.Second)
	}
	sessions.mu.Unlock()
	_, _, err = service.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("Expired session = %v, want ErrSessionExpired", err)
	}
	// The distinct reason still matches the uniform sentinel.
	if !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("ErrSessionExpired should match ErrInvalidToken, got %v", err)
	}
}

func TestSessionService_Refresh_SuspendedUser(t *testing.T) {
	service, users, _ := newTestSessionService(t)
	user := seedActiveUser(t, users)
	ctx := context.Background()

	pair, err := service.Issue(ctx, user, NewFingerprint("192.0.2.1", testUserAgent), false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	users.mu.Lock()
	users.users[user.ID].Status = domain.UserStatusSuspended
	users.mu.Unlock()

	if _, _, err := service.Refresh(ctx, pair.RefreshToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("Suspended user refresh = %v, want ErrInvalidToken", err)
	}
}

func TestSessionService_RevokeByToken_Idempotent(t *testing.T) {
	service, users, _ := newTestSessionService(t)
	user := seedActiveUser(t, users)
	ctx := context.Background()

	pair, err := service.Issue(ctx, user, NewFingerprint("192.0.2.1", testUserAgent), false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if err := service.RevokeByToken(ctx, user.ID, pair.RefreshToken); err != nil {
		t.Fatalf("RevokeByToken() error = %v", err)
	}
	_, _, err = service.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, domain.ErrSessionRevoked) {
		t.Errorf("Revoked token refresh = %v, want ErrSessionRevoked", err)
	}
	if !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("ErrSessionRevoked should match ErrInvalidToken, got %v", err)
	}
	// Revoking again, or revoking garbage, still succeeds.
	if err := service.RevokeByToken(ctx, user.ID, pair.RefreshToken); err != nil {
		t.Errorf("Second RevokeByToken() error = %v", err)
	}
	if err := service.RevokeByToken(ctx, user.ID, "no-such-token"); err != nil {
		t.Errorf("RevokeByToken() with unknown token error = %v", err)
	}
}

func TestSessionService_RevokeAll_SparesCurrent(t *testing.T) {
	service, users, _ := newTestSessionService(t)
	user := seedActiveUser(t, users)
	ctx := context.Background()

	current, err := service.Issue(ctx, user, NewFingerprint("192.0.2.1", testUserAgent), false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := service.Issue(ctx, user, NewFingerprint("192.0.2.2", "other agent"), false); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if err := service.RevokeAll(ctx, user.ID, current.RefreshToken); err != nil {
		t.Fatalf("RevokeAll() error = %v", err)
	}

	active, _ := service.ListActive(ctx, user.ID)
	if len(active) != 1 {
		t.Fatalf("Expected one surviving session, got %d", len(active))
	}
	if _, _, err := service.Refresh(ctx, current.RefreshToken); err != nil {
		t.Errorf("Current session should survive RevokeAll: %v", err)
	}
}

func TestSessionService_Terminate_OwnershipEnforced(t *testing.T) {
	service, users, _ := newTestSessionService(t)
	user := seedActiveUser(t, users)
	ctx := context.Background()

	if _, err := service.Issue(ctx, user, NewFingerprint("192.0.2.1", testUserAgent), false); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	active, _ := service.ListActive(ctx, user.ID)
	if len(active) != 1 {
		t.Fatalf("Expected one session, got %d", len(active))
	}

	// A different user cannot terminate it.
	if err := service.Terminate(ctx, active[0].ID, uuid.New()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Cross-user Terminate() = %v, want ErrSessionNotFound", err)
	}
	if err := service.Terminate(ctx, active[0].ID, user.ID); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	active, _ = service.ListActive(ctx, user.ID)
	if len(active) != 0 {
		t.Errorf("Expected no active sessions after terminate, got %d", len(active))
	}
}

func TestSessionService_ValidateAccessToken_RejectsWrongPurpose(t *testing.T) {
	service, _, _ := newTestSessionService(t)

	token, err := service.codec.Encode(TokenClaims{Purpose: PurposeMFATemp}, time.Minute)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, err := service.ValidateAccessToken(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("Wrong-purpose token = %v, want ErrInvalidToken", err)
	}
	if _, err := service.ValidateAccessToken("garbage"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("Garbage token = %v, want ErrInvalidToken", err)
	}
}

func TestDeviceFromUserAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{testUserAgent, "Windows"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0) Safari/604.1", "iOS"},
		{"Mozilla/5.0 (Linux; Android 14) Chrome/120.0", "Android"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1", "macOS"},
		{"Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0", "Linux"},
		{"", "Unknown"},
		{"curl/8.4.0", "Other"},
	}
	for _, tt := range tests {
		if got := deviceFromUserAgent(tt.ua); got != tt.want {
			t.Errorf("deviceFromUserAgent(%q) = %s, want %s", tt.ua, got, tt.want)
		}
	}
}

func TestBrowserFromUserAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{testUserAgent, "Chrome"},
		{"Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Edg/120.0", "Edge"},
		{"Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0", "Firefox"},
		{"Mozilla/5.0 (Macintosh) Version/17.0 Safari/605.1.15", "Safari"},
		{"", "Unknown"},
		{"curl/8.4.0", "Other"},
	}
	for _, tt := range tests {
		if got := browserFromUserAgent(tt.ua); got != tt.want {
			t.Errorf("browserFromUserAgent(%q) = %s, want %s", tt.ua, got, tt.want)
		}
	}
}
