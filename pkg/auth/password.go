package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost   int
	policy *PasswordPolicy
}

// NewPasswordHasher creates a hasher with the given bcrypt cost. The cost
// must be within bcrypt's supported range (4-31).
func NewPasswordHasher(cost int, policy *PasswordPolicy) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside valid range %d-%d", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &PasswordHasher{cost: cost, policy: policy}, nil
}

// Hash hashes a plaintext password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify checks a plaintext password against a stored hash.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether a stored hash was produced with a different
// cost than the currently configured one, to support rolling cost upgrades.
func (h *PasswordHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost
}

// Validate checks a password against the configured policy. All violations
// are collected so the caller can report them at once.
func (h *PasswordHasher) Validate(password string) []string {
	if h.policy == nil {
		return nil
	}
	return h.policy.Validate(password)
}

const (
	passwordUpper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	passwordLower   = "abcdefghijklmnopqrstuvwxyz"
	passwordDigits  = "0123456789"
	passwordSpecial = "!@#$%^&*()-_=+[]{}"
)

// GenerateRandomPassword produces a random password of the given length
// with at least one character from each required class, shuffled so the
// guaranteed characters do not sit at fixed positions.
func (h *PasswordHasher) GenerateRandomPassword(length int) (string, error) {
	classes := []string{passwordLower}
	if h.policy != nil {
		if h.policy.RequireUppercase {
			classes = append(classes, passwordUpper)
		}
		if h.policy.RequireNumber {
			classes = append(classes, passwordDigits)
		}
		if h.policy.RequireSpecial {
			classes = append(classes, passwordSpecial)
		}
	} else {
		classes = append(classes, passwordUpper, passwordDigits, passwordSpecial)
	}
	if length < len(classes) {
		return "", fmt.Errorf("password length %d cannot satisfy %d character classes", length, len(classes))
	}

	all := ""
	for _, class := range classes {
		all += class
	}

	chars := make([]byte, 0, length)
	for _, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Fisher-Yates with crypto/rand.
	for i := len(chars) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		j := n.Int64()
		chars[i], chars[j] = chars[j], chars[i]
	}

	return string(chars), nil
}

func randomChar(charset string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
	if err != nil {
		return 0, err
	}
	return charset[n.Int64()], nil
}
