package auth

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

// NormalizeEmail lowercases and trims an email address. Email comparison is
// case-insensitive everywhere; normalizing at the edges keeps the database
// predicates simple.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail performs a structural check on an email address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 {
		return domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.ErrInvalidEmail
	}
	// mail.ParseAddress accepts local-only addresses; require a dot in the
	// domain part.
	at := strings.LastIndex(email, "@")
	if at < 1 || !strings.Contains(email[at+1:], ".") {
		return domain.ErrInvalidEmail
	}
	return nil
}

// SanitizeName trims a display name and strips control characters.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
