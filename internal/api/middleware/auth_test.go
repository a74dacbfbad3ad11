package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibhelm/service-agent/internal/auth"
)

const testSecret = "middleware-test-secret"

func signToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	body := base64.RawURLEncoding.EncodeToString(payload)

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(header + "." + body))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return header + "." + body + "." + sig
}

func userToken(t *testing.T, role string) string {
	return signToken(t, map[string]any{
		"sub":   "user-1",
		"email": "someone@example.com",
		"aud":   "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"app_metadata": map[string]any{
			"role": role,
		},
	})
}

func echoClaims(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Write([]byte(claims.Sub + ":" + claims.Role))
}

func TestAuth_ValidToken(t *testing.T) {
	handler := Auth(auth.NewVerifier(testSecret))(http.HandlerFunc(echoClaims))

	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, "user"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1:user", rec.Body.String())
}

func TestAuth_MissingHeader(t *testing.T) {
	handler := Auth(auth.NewVerifier(testSecret))(http.HandlerFunc(echoClaims))

	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestAuth_NotBearer(t *testing.T) {
	handler := Auth(auth.NewVerifier(testSecret))(http.HandlerFunc(echoClaims))

	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid authorization format")
}

func TestAuth_BadSignature(t *testing.T) {
	handler := Auth(auth.NewVerifier("a different secret"))(http.HandlerFunc(echoClaims))

	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, "user"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin_AdminPasses(t *testing.T) {
	handler := Auth(auth.NewVerifier(testSecret))(RequireAdmin(http.HandlerFunc(echoClaims)))

	req := httptest.NewRequest(http.MethodPost, "/services/mcp/start", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, "admin"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1:admin", rec.Body.String())
}

func TestRequireAdmin_UserForbidden(t *testing.T) {
	handler := Auth(auth.NewVerifier(testSecret))(RequireAdmin(http.HandlerFunc(echoClaims)))

	req := httptest.NewRequest(http.MethodPost, "/services/mcp/start", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, "user"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin role required")
}

func TestRequireAdmin_NoClaims(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(echoClaims))

	req := httptest.NewRequest(http.MethodPost, "/services/mcp/start", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
