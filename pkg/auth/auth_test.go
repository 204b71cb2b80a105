package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	svc, err := New(&Config{Secret: "test-secret", Issuer: "cryptotrack", Expiration: time.Hour})
	require.NoError(t, err)
	return svc
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(&Config{Issuer: "cryptotrack", Expiration: time.Hour})
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.GenerateToken("collector")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "collector", claims.Subject)
	assert.Equal(t, "cryptotrack", claims.Issuer)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc := newTestService(t)
	other, err := New(&Config{Secret: "other-secret", Issuer: "cryptotrack", Expiration: time.Hour})
	require.NoError(t, err)

	token, err := other.GenerateToken("collector")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	expired, err := New(&Config{Secret: "test-secret", Issuer: "cryptotrack", Expiration: -time.Minute})
	require.NoError(t, err)

	token, err := expired.GenerateToken("collector")
	require.NoError(t, err)

	svc := newTestService(t)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := svc.Middleware(next)

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("not a bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Basic abc123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer nonsense")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := svc.GenerateToken("ops")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ops", req.Header.Get("X-Auth-Subject"))
	})
}
