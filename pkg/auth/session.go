package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

// Default token lifetimes.
const (
	DefaultAccessTokenTTL            = 15 * time.Minute
	DefaultRefreshTokenTTL           = 24 * time.Hour
	DefaultRememberMeRefreshTokenTTL = 30 * 24 * time.Hour
)

// SessionConfig holds session configuration.
type SessionConfig struct {
	AccessTokenTTL time.Duration
	// RefreshTokenTTL applies to plain logins; RememberMeRefreshTokenTTL
	// applies when the client asked to stay signed in.
	RefreshTokenTTL           time.Duration
	RememberMeRefreshTokenTTL time.Duration
}

// SessionService issues, refreshes, and revokes sessions. It is the single
// token-issuance path: password logins and MFA-completed logins both end
// here.
type SessionService struct {
	config   SessionConfig
	sessions SessionStore
	users    UserStore
	codec    *TokenCodec
}

// NewSessionService creates a new session service. codec must be built with
// the access-token secret.
func NewSessionService(config SessionConfig, sessions SessionStore, users UserStore, codec *TokenCodec) *SessionService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if config.RememberMeRefreshTokenTTL == 0 {
		config.RememberMeRefreshTokenTTL = DefaultRememberMeRefreshTokenTTL
	}
	return &SessionService{
		config:   config,
		sessions: sessions,
		users:    users,
		codec:    codec,
	}
}

// Issue creates or reuses a session for the user and returns a fresh token
// pair. A live session with the same fingerprint is rotated in place
// instead of multiplying rows per device; the bearer secret changes on
// every touch either way.
func (s *SessionService) Issue(ctx context.Context, user *domain.User, fp Fingerprint, rememberMe bool) (*domain.TokenPair, error) {
	refreshToken, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &domain.Session{
		ID:          uuid.New(),
		UserID:      user.ID,
		TokenHash:   HashToken(refreshToken),
		Purpose:     domain.SessionPurposeSession,
		Fingerprint: fp.Hash,
		DeviceInfo:  deviceFromUserAgent(fp.UserAgent),
		Browser:     browserFromUserAgent(fp.UserAgent),
		IP:          fp.IP,
		RememberMe:  rememberMe,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.refreshTTL(rememberMe)),
		LastUsedAt:  now,
	}

	if _, err := s.sessions.ReuseOrCreate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return s.tokenPair(user, session.ID, refreshToken, now)
}

// Refresh validates a refresh token, rotates it, and returns a new token
// pair along with the session's user. Used, expired, revoked, and unknown
// tokens all match ErrInvalidToken; the returned sentinel carries the
// reason for logs and tests only.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, *domain.User, error) {
	session, err := s.sessions.GetByTokenHash(ctx, HashToken(refreshToken), domain.SessionPurposeSession)
	if err != nil {
		return nil, nil, domain.ErrInvalidToken
	}
	if session.RevokedAt != nil {
		return nil, nil, domain.ErrSessionRevoked
	}
	if !session.IsValid() {
		return nil, nil, domain.ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, domain.ErrInvalidToken
	}
	if !user.CanLogin() {
		return nil, nil, domain.ErrInvalidToken
	}

	// Single-use rotation: the presented hash is replaced before the new
	// pair is returned.
	newToken, err := GenerateRefreshToken()
	if err != nil {
		return nil, nil, err
	}
	now := time.Now()
	expiry := sql.NullTime{Time: now.Add(s.refreshTTL(session.RememberMe)), Valid: true}
	if err := s.sessions.Rotate(ctx, session.ID, session.UserID, HashToken(newToken), expiry); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil, domain.ErrInvalidToken
		}
		return nil, nil, err
	}

	tokens, err := s.tokenPair(user, session.ID, newToken, now)
	if err != nil {
		return nil, nil, err
	}
	return tokens, user, nil
}

// RevokeByToken revokes the session carrying the presented refresh token.
// Idempotent: revoking an unknown or already-revoked token succeeds.
func (s *SessionService) RevokeByToken(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	return s.sessions.RevokeByTokenHash(ctx, HashToken(refreshToken), userID)
}

// RevokeAll revokes every live session for a user, optionally sparing the
// session holding the given raw refresh token.
func (s *SessionService) RevokeAll(ctx context.Context, userID uuid.UUID, exceptRefreshToken string) error {
	var except *string
	if exceptRefreshToken != "" {
		h := HashToken(exceptRefreshToken)
		except = &h
	}
	return s.sessions.RevokeAll(ctx, userID, except)
}

// ListActive returns the user's live sessions, most recently used first.
func (s *SessionService) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	return s.sessions.ListActive(ctx, userID)
}

// Terminate revokes a specific session owned by the user.
func (s *SessionService) Terminate(ctx context.Context, sessionID, userID uuid.UUID) error {
	return s.sessions.Revoke(ctx, sessionID, userID)
}

// PurgeExpired hard-deletes expired session rows.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.PurgeExpired(ctx)
}

// ValidateAccessToken validates an access token and returns its claims.
func (s *SessionService) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	claims, status := s.codec.Decode(tokenString)
	if status != DecodeOK || claims.Purpose != PurposeAccess {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (s *SessionService) refreshTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return s.config.RememberMeRefreshTokenTTL
	}
	return s.config.RefreshTokenTTL
}

func (s *SessionService) tokenPair(user *domain.User, sessionID uuid.UUID, refreshToken string, now time.Time) (*domain.TokenPair, error) {
	accessToken, err := s.codec.Encode(TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID.String()},
		Email:            user.Email,
		Name:             user.Name,
		Purpose:          PurposeAccess,
		SessionID:        sessionID.String(),
	}, s.config.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.config.AccessTokenTTL.Seconds()),
		ExpiresAt:    now.Add(s.config.AccessTokenTTL),
	}, nil
}

// deviceFromUserAgent reduces a user agent to a coarse device label for
// session listings.
func deviceFromUserAgent(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"):
		return "iOS"
	case strings.Contains(lower, "android"):
		return "Android"
	case strings.Contains(lower, "windows"):
		return "Windows"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		return "macOS"
	case strings.Contains(lower, "linux"):
		return "Linux"
	case ua == "":
		return "Unknown"
	default:
		return "Other"
	}
}

// browserFromUserAgent reduces a user agent to a coarse browser label.
func browserFromUserAgent(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "edg/"):
		return "Edge"
	case strings.Contains(lower, "chrome/"):
		return "Chrome"
	case strings.Contains(lower, "firefox/"):
		return "Firefox"
	case strings.Contains(lower, "safari/"):
		return "Safari"
	case ua == "":
		return "Unknown"
	default:
		return "Other"
	}
}
