package auth

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

const (
	// TOTP parameters. The skew of one period (±30s) absorbs clock drift
	// and must be preserved as-is.
	totpDigits = 6
	totpPeriod = 30
	totpSkew   = 1

	// Backup code parameters. The alphabet excludes visually confusable
	// characters (0/O/I/1).
	backupCodeLength = 8
	backupCodeCount  = 10
	backupCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// MFA temp tokens are prefixed so they cannot be confused with access
	// tokens at the HTTP boundary.
	tempTokenPrefix = "mfa_"
)

// Defaults for the MFA login-attempt lockout and temp token lifetime.
const (
	DefaultMFAMaxAttempts     = 5
	DefaultMFALockoutDuration = 15 * time.Minute
	DefaultTempTokenTTL       = 5 * time.Minute
)

// MFAConfig contains configuration for the MFA service.
type MFAConfig struct {
	Issuer          string
	EncryptionKey   []byte // 32 bytes for AES-256-GCM
	TempTokenTTL    time.Duration
	MaxAttempts     int
	LockoutDuration time.Duration
}

type mfaAttemptRecord struct {
	count       int
	lastAttempt time.Time
	lockedUntil *time.Time
}

// MFAService handles multi-factor authentication: TOTP enrollment and
// verification, backup codes, temp tokens, and per-user attempt lockout.
//
// Attempt state is process-local, the same tradeoff as the login throttle.
type MFAService struct {
	config    MFAConfig
	users     UserStore
	store     MFAStore
	hasher    *PasswordHasher
	tempCodec *TokenCodec

	mu       sync.Mutex
	attempts map[uuid.UUID]*mfaAttemptRecord
}

// NewMFAService creates a new MFA service. tempCodec must be built with the
// MFA temp-token secret, which should differ from the access-token secret.
func NewMFAService(config MFAConfig, users UserStore, store MFAStore, hasher *PasswordHasher, tempCodec *TokenCodec) *MFAService {
	if config.TempTokenTTL == 0 {
		config.TempTokenTTL = DefaultTempTokenTTL
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = DefaultMFAMaxAttempts
	}
	if config.LockoutDuration == 0 {
		config.LockoutDuration = DefaultMFALockoutDuration
	}
	return &MFAService{
		config:    config,
		users:     users,
		store:     store,
		hasher:    hasher,
		tempCodec: tempCodec,
		attempts:  make(map[uuid.UUID]*mfaAttemptRecord),
	}
}

// Setup generates a TOTP secret and ten backup codes for a user. The
// mfa_enabled flag stays false until VerifyAndEnable confirms the
// enrollment with a correct code. Re-running setup while MFA is already
// enabled is a conflict; re-running while pending replaces the previous
// material.
func (s *MFAService) Setup(ctx context.Context, userID uuid.UUID) (*domain.MFASetupResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, domain.ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: user.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	var qrBuf bytes.Buffer
	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code image: %w", err)
	}
	if err := png.Encode(&qrBuf, img); err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	qrDataURI := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(qrBuf.Bytes()))

	plainCodes, err := generateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, err
	}
	hashedCodes := make([]*domain.BackupCode, len(plainCodes))
	for i, code := range plainCodes {
		hash, err := s.hasher.Hash(code)
		if err != nil {
			return nil, fmt.Errorf("failed to hash backup code: %w", err)
		}
		hashedCodes[i] = &domain.BackupCode{
			ID:        uuid.New(),
			UserID:    userID,
			CodeHash:  hash,
			CreatedAt: time.Now(),
		}
	}

	encryptedSecret, err := s.encryptSecret(key.Secret())
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt TOTP secret: %w", err)
	}

	// Secret and backup codes land in one transaction inside the store.
	if err := s.store.ReplaceSetup(ctx, userID, encryptedSecret, hashedCodes); err != nil {
		return nil, fmt.Errorf("failed to store MFA setup: %w", err)
	}

	return &domain.MFASetupResult{
		Secret:        key.Secret(),
		QRCodeDataURI: qrDataURI,
		BackupCodes:   plainCodes,
	}, nil
}

// VerifyAndEnable checks a TOTP code against the pending secret and enables
// MFA for the user. Requires Setup to have run first.
func (s *MFAService) VerifyAndEnable(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFASecret == nil {
		return domain.ErrMFANotConfigured
	}

	valid, err := s.validateTOTP(code, *user.MFASecret)
	if err != nil {
		return err
	}
	if !valid {
		return domain.ErrInvalidMFACode
	}

	if err := s.users.SetMFAEnabled(ctx, userID, true); err != nil {
		return fmt.Errorf("failed to enable MFA: %w", err)
	}
	return nil
}

// VerifyTOTP verifies a login-time TOTP code, applying the attempt lockout.
// While locked out every attempt is rejected outright, without checking
// the code.
func (s *MFAService) VerifyTOTP(ctx context.Context, user *domain.User, code string) error {
	if s.isLockedOut(user.ID) {
		return domain.ErrMFALockedOut
	}
	if user.MFASecret == nil {
		return domain.ErrMFANotConfigured
	}

	valid, err := s.validateTOTP(code, *user.MFASecret)
	if err != nil {
		return err
	}
	if !valid {
		return s.recordFailure(user.ID)
	}

	s.clearAttempts(user.ID)
	return nil
}

// VerifyBackupCode verifies and consumes a backup code, applying the same
// attempt lockout as VerifyTOTP. Matching is a linear bcrypt scan over the
// user's unused codes, acceptable for the bounded set of ten.
func (s *MFAService) VerifyBackupCode(ctx context.Context, user *domain.User, code string) error {
	if s.isLockedOut(user.ID) {
		return domain.ErrMFALockedOut
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))

	codes, err := s.store.ListUnused(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load backup codes: %w", err)
	}
	for _, candidate := range codes {
		if s.hasher.Verify(normalized, candidate.CodeHash) {
			if err := s.store.MarkUsed(ctx, candidate.ID, user.ID); err != nil {
				// Lost the race to another consumer of the same code.
				if errors.Is(err, domain.ErrInvalidMFACode) {
					return s.recordFailure(user.ID)
				}
				return err
			}
			s.clearAttempts(user.ID)
			return nil
		}
	}

	return s.recordFailure(user.ID)
}

// RemainingBackupCodes returns how many unused backup codes the user has.
func (s *MFAService) RemainingBackupCodes(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.CountUnused(ctx, userID)
}

// CreateTempToken issues the short-lived signed token that authorizes only
// the second-factor endpoints after a correct password.
func (s *MFAService) CreateTempToken(userID uuid.UUID, email string) (string, error) {
	token, err := s.tempCodec.Encode(TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
		Email:            email,
		Purpose:          PurposeMFATemp,
	}, s.config.TempTokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to create MFA temp token: %w", err)
	}
	return tempTokenPrefix + token, nil
}

// ValidateTempToken checks an MFA temp token and returns the user it was
// issued for. Malformed, expired, tampered, and wrong-purpose tokens are
// rejected uniformly.
func (s *MFAService) ValidateTempToken(token string) (uuid.UUID, error) {
	if !strings.HasPrefix(token, tempTokenPrefix) {
		return uuid.Nil, domain.ErrInvalidTempToken
	}

	claims, status := s.tempCodec.Decode(strings.TrimPrefix(token, tempTokenPrefix))
	if status != DecodeOK || claims.Purpose != PurposeMFATemp {
		return uuid.Nil, domain.ErrInvalidTempToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidTempToken
	}
	return userID, nil
}

// isLockedOut resolves the lockout state for a user, lazily resetting
// elapsed lockouts.
func (s *MFAService) isLockedOut(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.attempts[userID]
	if !ok || rec.lockedUntil == nil {
		return false
	}
	if time.Now().After(*rec.lockedUntil) {
		delete(s.attempts, userID)
		return false
	}
	return true
}

// recordFailure increments the attempt counter and starts a lockout when
// the maximum is reached. The returned error distinguishes the two.
func (s *MFAService) recordFailure(userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.attempts[userID]
	if !ok {
		rec = &mfaAttemptRecord{}
		s.attempts[userID] = rec
	}
	rec.count++
	rec.lastAttempt = time.Now()

	if rec.count >= s.config.MaxAttempts {
		until := time.Now().Add(s.config.LockoutDuration)
		rec.lockedUntil = &until
		return domain.ErrMFALockedOut
	}
	return domain.ErrInvalidMFACode
}

func (s *MFAService) clearAttempts(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, userID)
}

func (s *MFAService) validateTOTP(code, encryptedSecret string) (bool, error) {
	secret, err := s.decryptSecret(encryptedSecret)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}
	valid, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate TOTP code: %w", err)
	}
	return valid, nil
}

// encryptSecret encrypts a TOTP secret using AES-256-GCM.
func (s *MFAService) encryptSecret(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decryptSecret decrypts an encrypted TOTP secret.
func (s *MFAService) decryptSecret(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// generateBackupCodes produces n pairwise-unique codes, regenerating on the
// (unlikely) collision.
func generateBackupCodes(n int) ([]string, error) {
	codes := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for len(codes) < n {
		code, err := generateBackupCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}

// generateBackupCode generates one random 8-character backup code.
func generateBackupCode() (string, error) {
	chars := make([]byte, backupCodeLength)
	if _, err := rand.Read(chars); err != nil {
		return "", err
	}
	for i := range chars {
		chars[i] = backupCodeChars[int(chars[i])%len(backupCodeChars)]
	}
	return string(chars), nil
}
