package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Hung6066/IVF-sub008/models"
	"github.com/Hung6066/IVF-sub008/sessions"
	"github.com/Hung6066/IVF-sub008/trust"
)

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.IsAllowed("203.0.113.1"))
	}
	assert.False(t, rl.IsAllowed("203.0.113.1"))
	assert.True(t, rl.IsAllowed("203.0.113.2"), "limits are per client address")
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.1:1234"

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, r)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, r)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestTrustContextMiddleware(t *testing.T) {
	builder := trust.NewBuilder(sessions.NewTokenVerifier("secret", 15*time.Minute), sessions.NewMemoryStore(), nil, nil)

	var seen *trust.Context
	handler := TrustContext(builder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = trust.FromRequest(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/patients/1", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.RemoteAddr = "203.0.113.1:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.NotNil(t, seen)
	assert.Equal(t, models.AuthLevelNone, seen.AuthLevel)
	assert.Equal(t, "203.0.113.1", seen.SourceIP)
	assert.Equal(t, seen.CorrelationID, w.Header().Get(trust.HeaderCorrelationID),
		"the correlation id is echoed to the client")
}
