package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowPerClient(t *testing.T) {
	l := NewLimiter(3600, 2)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "clients have separate buckets")
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/search", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "ip:10.0.0.7", ClientKey(r))

	r.Header.Set(ClientHeader, "agent-1")
	assert.Equal(t, "id:agent-1", ClientKey(r))
}

func TestMiddleware(t *testing.T) {
	l := NewLimiter(60, 1)
	h := l.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/v1/search", nil)
		r.Header.Set(ClientHeader, "agent-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	first := send()
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "60", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := send()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestPrune(t *testing.T) {
	now := time.Now()
	l := NewLimiter(60, 1)
	l.now = func() time.Time { return now }
	l.Allow("old")
	now = now.Add(time.Hour)
	l.Allow("new")

	assert.Equal(t, 1, l.Prune(10*time.Minute))
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Contains(t, l.limiters, "new")
	assert.NotContains(t, l.limiters, "old")
}
