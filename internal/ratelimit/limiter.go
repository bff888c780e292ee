// Package ratelimit throttles callers of the mutating HTTP routes.
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientHeader lets a caller name its own bucket.
const ClientHeader = "X-Session-ID"

// Limiter manages one token bucket per client.
type Limiter struct {
	limiters map[string]*entry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	perHour  int
	now      func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a new rate limiter.
// requestsPerHour: requests allowed per hour per client (e.g., 600)
// burst: max requests in a burst (e.g., 20)
func NewLimiter(requestsPerHour int, burst int) *Limiter {
	// Convert requests per hour to requests per second
	r := rate.Limit(float64(requestsPerHour) / 3600.0)

	return &Limiter{
		limiters: make(map[string]*entry),
		rate:     r,
		burst:    burst,
		perHour:  requestsPerHour,
		now:      time.Now,
	}
}

// GetLimiter returns the rate limiter for a specific client
func (l *Limiter) GetLimiter(clientID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.limiters[clientID]
	if !exists {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[clientID] = e
	}
	e.lastSeen = l.now()

	return e.limiter
}

// Allow checks if a request is allowed for the given client
func (l *Limiter) Allow(clientID string) bool {
	return l.GetLimiter(clientID).AllowN(l.now(), 1)
}

// Tokens returns the current number of available tokens for a client
func (l *Limiter) Tokens(clientID string) float64 {
	return l.GetLimiter(clientID).TokensAt(l.now())
}

// Prune forgets clients idle for longer than idle.
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	n := 0
	for id, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, id)
			n++
		}
	}
	return n
}

// ClientKey identifies the caller by ClientHeader, falling back to the
// remote IP.
func ClientKey(r *http.Request) string {
	if id := r.Header.Get(ClientHeader); id != "" {
		return "id:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Middleware rejects requests over the client's budget with 429 and
// reports the budget in X-RateLimit-* headers. onReject may be nil.
func (l *Limiter) Middleware(onReject func(w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKey(r)
			allowed := l.Allow(key)
			remaining := int(math.Max(0, math.Floor(l.Tokens(key))))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.perHour))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				if l.perHour > 0 {
					w.Header().Set("Retry-After", strconv.Itoa((3600+l.perHour-1)/l.perHour))
				}
				if onReject != nil {
					onReject(w, r)
					return
				}
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
