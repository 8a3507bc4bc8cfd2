package mfa

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/internal/http/middleware"
)

// authedContext attaches a user ID the way the auth middleware would.
func authedContext(r *http.Request) context.Context {
	return context.WithValue(r.Context(), middleware.UserIDKey, uuid.New())
}

func TestSetup_RequiresAuthentication(t *testing.T) {
	handler := &Handler{
		mfaService: nil,
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/mfa/setup", nil)
	rec := httptest.NewRecorder()

	handler.Setup(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestVerify_RequiresAuthentication(t *testing.T) {
	handler := &Handler{
		mfaService: nil,
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/mfa/verify", bytes.NewBufferString(`{"code": "123456"}`))
	rec := httptest.NewRecorder()

	handler.Verify(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestVerify_Validation(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "empty body",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "code is required",
		},
		{
			name:           "invalid json",
			body:           `{invalid}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
	}

	handler := &Handler{
		mfaService: nil,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/mfa/verify", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(authedContext(req))
			rec := httptest.NewRecorder()

			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Validation should have failed before reaching service")
				}
			}()

			handler.Verify(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.expectedStatus)
			}

			var response map[string]string
			json.NewDecoder(rec.Body).Decode(&response)
			if response["error"] != tt.expectedError {
				t.Errorf("Error = %q, want %q", response["error"], tt.expectedError)
			}
		})
	}
}
