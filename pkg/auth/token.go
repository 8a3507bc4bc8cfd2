package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

// Token purposes carried in the purpose claim.
const (
	PurposeAccess  = "access"
	PurposeMFATemp = "mfa_temp"
)

// TokenClaims are the claims carried in signed compact tokens.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
	SessionID string `json:"sid,omitempty"`
}

// DecodeStatus classifies the outcome of decoding a token. Invalid input
// never produces a panic or an error value from Decode; callers that do not
// care about the reason collapse everything but DecodeOK to "invalid".
type DecodeStatus int

const (
	DecodeOK DecodeStatus = iota
	DecodeMalformed
	DecodeBadSignature
	DecodeExpired
)

func (s DecodeStatus) String() string {
	switch s {
	case DecodeOK:
		return "ok"
	case DecodeMalformed:
		return "malformed"
	case DecodeBadSignature:
		return "bad signature"
	case DecodeExpired:
		return "expired"
	}
	return "unknown"
}

// TokenCodec encodes and decodes HMAC-SHA256-signed compact tokens.
// Separate codec instances are built for access tokens and MFA temp tokens
// so the two secrets stay independent.
type TokenCodec struct {
	secret []byte
	issuer string
}

// NewTokenCodec creates a codec bound to a signing secret and issuer.
func NewTokenCodec(secret []byte, issuer string) *TokenCodec {
	return &TokenCodec{secret: secret, issuer: issuer}
}

// Encode signs the claims with a fresh jti and the given expiry.
func (c *TokenCodec) Encode(claims TokenClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.Issuer = c.issuer
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies the signature and expiry and returns the claims. It never
// returns an error for bad input; the status tells the caller why decoding
// failed.
func (c *TokenCodec) Decode(tokenString string) (*TokenClaims, DecodeStatus) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, DecodeExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, DecodeBadSignature
		default:
			return nil, DecodeMalformed
		}
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, DecodeMalformed
	}
	return claims, DecodeOK
}
