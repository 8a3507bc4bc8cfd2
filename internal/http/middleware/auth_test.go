package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/auth"
)

func newTestSessionService() *auth.SessionService {
	codec := auth.NewTokenCodec([]byte("test-secret-key-at-least-32-char"), "authcore-test")
	return auth.NewSessionService(auth.SessionConfig{}, nil, nil, codec)
}

func encodeAccessToken(t *testing.T, userID uuid.UUID, ttl time.Duration) string {
	t.Helper()
	codec := auth.NewTokenCodec([]byte("test-secret-key-at-least-32-char"), "authcore-test")
	token, err := codec.Encode(auth.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
		Email:            "test@example.com",
		Purpose:          auth.PurposeAccess,
	}, ttl)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return token
}

func TestAuth_ValidToken(t *testing.T) {
	sessions := newTestSessionService()
	userID := uuid.New()
	token := encodeAccessToken(t, userID, time.Minute)

	var gotUserID uuid.UUID
	var gotOK bool
	handler := Auth(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, gotOK = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if !gotOK {
		t.Fatal("GetUserID should find the user ID on the context")
	}
	if gotUserID != userID {
		t.Errorf("user ID = %s, want %s", gotUserID, userID)
	}

	// Claims land on the context too.
	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler = Auth(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaims(r.Context())
		if !ok {
			t.Error("GetClaims should find claims on the context")
		} else if claims.Email != "test@example.com" {
			t.Errorf("claims email = %s, want test@example.com", claims.Email)
		}
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestAuth_Rejections(t *testing.T) {
	sessions := newTestSessionService()

	tests := []struct {
		name   string
		header string
	}{
		{
			name:   "missing header",
			header: "",
		},
		{
			name:   "wrong scheme",
			header: "Basic dXNlcjpwYXNz",
		},
		{
			name:   "garbage token",
			header: "Bearer not.a.token",
		},
		{
			name:   "expired token",
			header: "Bearer " + encodeAccessToken(t, uuid.New(), -time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be reached")
			}))

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("got status %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestGetUserID_MissingFromContext(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	if _, ok := GetUserID(req.Context()); ok {
		t.Error("GetUserID should report absence on a bare context")
	}
}
