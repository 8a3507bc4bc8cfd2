package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Fingerprint correlates repeated logins from the same device/browser to a
// single session row. It is a best-effort device identity, not a security
// boundary.
type Fingerprint struct {
	IP        string
	UserAgent string
	Hash      string
}

// FingerprintFromRequest derives a fingerprint from request metadata.
func FingerprintFromRequest(r *http.Request) Fingerprint {
	return NewFingerprint(ClientIP(r), r.UserAgent())
}

// NewFingerprint builds a fingerprint from an IP and user agent.
func NewFingerprint(ip, userAgent string) Fingerprint {
	data := fmt.Sprintf("%s|%s", userAgent, ip)
	hash := sha256.Sum256([]byte(data))
	return Fingerprint{
		IP:        ip,
		UserAgent: userAgent,
		Hash:      hex.EncodeToString(hash[:]),
	}
}

// ClientIP extracts the client IP address from the request. Checks
// X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	// RemoteAddr format is "IP:port", strip the port.
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
