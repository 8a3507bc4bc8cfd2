package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const refreshTokenLen = 64

// GenerateRefreshToken generates an opaque high-entropy refresh token:
// 64 random bytes, hex-encoded. Clients only round-trip it, never parse it.
func GenerateRefreshToken() (string, error) {
	return GenerateToken(refreshTokenLen)
}

// GenerateToken generates a hex-encoded random token of n bytes.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken hashes an opaque token with SHA-256 for storage. The raw token
// is never persisted.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
