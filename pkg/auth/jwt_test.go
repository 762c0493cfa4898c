package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-with-enough-entropy"

func TestNewJWTValidator_RequiresSecret(t *testing.T) {
	_, err := NewJWTValidator("", "", "")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestValidateToken_RoundTrip(t *testing.T) {
	v, err := NewJWTValidator(testSecret, "orchestrator", "api")
	require.NoError(t, err)

	token, err := v.Sign("operator", time.Minute)
	require.NoError(t, err)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)
}

func TestValidateToken_Rejects(t *testing.T) {
	v, err := NewJWTValidator(testSecret, "orchestrator", "")
	require.NoError(t, err)
	other, err := NewJWTValidator("another-secret", "orchestrator", "")
	require.NoError(t, err)
	wrongIssuer, err := NewJWTValidator(testSecret, "someone-else", "")
	require.NoError(t, err)

	forged, err := other.Sign("operator", time.Minute)
	require.NoError(t, err)
	expired, err := v.Sign("operator", -time.Hour)
	require.NoError(t, err)
	issuer, err := wrongIssuer.Sign("operator", time.Minute)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "orchestrator"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    "orchestrator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"forged":    forged,
		"expired":   expired,
		"issuer":    issuer,
		"no expiry": noExp,
		"alg none":  none,
		"garbage":   "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v, err := NewJWTValidator(testSecret, "", "")
	require.NoError(t, err)
	token, err := v.Sign("operator", time.Minute)
	require.NoError(t, err)

	var subject string
	h := Middleware(v, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
	assert.Equal(t, "operator", subject)
}
