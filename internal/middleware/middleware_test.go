package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titi-ai/titi/internal/mode"
	"github.com/titi-ai/titi/internal/model"
	"github.com/titi-ai/titi/pkg/logger"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(GetUserID(r.Context()) + "|" + GetCorrelationID(r.Context())))
}

func signed(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	h := Auth("")(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	h := Auth("secret")(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "Bearer " + signed(t, "other", "ana"), http.StatusUnauthorized},
		{"valid", "Bearer " + signed(t, "secret", "ana"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.True(t, strings.HasPrefix(rec.Body.String(), "ana|"))
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestLoggingCorrelationID(t *testing.T) {
	h := Logging(logger.NewNop())(http.HandlerFunc(okHandler))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		id := rec.Header().Get(CorrelationIDHeader)
		assert.NotEmpty(t, id)
		assert.Equal(t, "|"+id, rec.Body.String())
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(CorrelationIDHeader))
		assert.Equal(t, "|abc-123", rec.Body.String())
	})
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/titi", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/titi", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"*"})(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodOptions, "/titi", nil)
	req.Header.Set("Origin", "https://word.office.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestValidateConversationID(t *testing.T) {
	assert.NoError(t, ValidateConversationID("2b1f0c8e-1d1a-4c3e-9a57-0f4b5f1e2d3c"))
	assert.Error(t, ValidateConversationID("../secret"))
	assert.Error(t, ValidateConversationID(""))
}

func TestValidateTitiRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     model.TitiRequest
		wantErr bool
	}{
		{"empty request is fine", model.TitiRequest{}, false},
		{"stale id is fine", model.TitiRequest{Instruction: "x", ConversationID: "not-a-uuid"}, false},
		{"legal mode", model.TitiRequest{Mode: "legal"}, false},
		{"unknown mode", model.TitiRequest{Mode: "medical"}, true},
		{"selection too long", model.TitiRequest{Selection: strings.Repeat("a", MaxSelectionBytes+1)}, true},
		{"instruction too long", model.TitiRequest{Instruction: strings.Repeat("a", MaxInstructionBytes+1)}, true},
		{"invalid utf8", model.TitiRequest{Instruction: "\xff\xfe"}, true},
		{"oversized id is fine", model.TitiRequest{ConversationID: strings.Repeat("a", MaxConversationIDBytes+1)}, false},
		{"non utf8 id is fine", model.TitiRequest{ConversationID: "\xff\xfe"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTitiRequest(&tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	err := ValidateTitiRequest(&model.TitiRequest{Mode: "medical"})
	assert.ErrorIs(t, err, mode.ErrUnknownMode)

	req := model.TitiRequest{ConversationID: strings.Repeat("a", MaxConversationIDBytes+1)}
	require.NoError(t, ValidateTitiRequest(&req))
	assert.Empty(t, req.ConversationID)
}
