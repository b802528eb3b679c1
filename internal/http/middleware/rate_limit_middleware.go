package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/smarthubultra/identity-service/internal/http/response"
	"github.com/smarthubultra/identity-service/internal/observability"
	"github.com/smarthubultra/identity-service/internal/security"
)

// Decision is one rate limit verdict for a key.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter decides whether a keyed request fits in the window.
type Limiter interface {
	Allow(key string, limit int, window time.Duration) Decision
}

// localFixedWindowLimiter counts hits per key in a sliding window held
// in process memory. Good enough for a single instance; swap the
// Limiter for a shared backend when running more than one.
type localFixedWindowLimiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	cleanup time.Time
}

func NewLocalFixedWindowLimiter() Limiter {
	return &localFixedWindowLimiter{
		hits:    make(map[string][]time.Time),
		cleanup: time.Now().Add(time.Minute),
	}
}

func (l *localFixedWindowLimiter) Allow(key string, limit int, window time.Duration) Decision {
	now := time.Now()
	cutoff := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.cleanup) {
		for k, hits := range l.hits {
			if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
				delete(l.hits, k)
			}
		}
		l.cleanup = now.Add(window)
	}

	kept := l.hits[key][:0]
	for _, hit := range l.hits[key] {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}

	if len(kept) >= limit {
		l.hits[key] = kept
		retry := kept[0].Add(window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry, ResetAt: now.Add(retry)}
	}

	kept = append(kept, now)
	l.hits[key] = kept
	return Decision{
		Allowed:   true,
		Remaining: limit - len(kept),
		ResetAt:   kept[0].Add(window),
	}
}

// RateLimiter is the middleware wrapper around a Limiter.
type RateLimiter struct {
	limiter Limiter
	limit   int
	window  time.Duration
	scope   string
	keyFunc func(r *http.Request) string
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewScopedRateLimiter(limit, window, "api", nil)
}

func NewScopedRateLimiter(limit int, window time.Duration, scope string, keyFunc func(r *http.Request) string) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if scope == "" {
		scope = "api"
	}
	if keyFunc == nil {
		keyFunc = clientIPKey
	}
	return &RateLimiter{
		limiter: NewLocalFixedWindowLimiter(),
		limit:   limit,
		window:  window,
		scope:   scope,
		keyFunc: keyFunc,
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFunc(r)
			if key == "" {
				key = clientIPKey(r)
			}
			decision := rl.limiter.Allow(key, rl.limit, rl.window)
			writeRateLimitHeaders(w.Header(), rl.limit, decision)
			if !decision.Allowed {
				observability.RecordRateLimitDecision(rl.scope, "deny")
				w.Header().Set("Retry-After", retryAfterHeader(decision.RetryAfter))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(rl.scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

// SubjectOrIPKeyFunc buckets authenticated traffic per identity and
// falls back to the client IP for anonymous requests.
func SubjectOrIPKeyFunc(jwtMgr *security.JWTManager) func(r *http.Request) string {
	return func(r *http.Request) string {
		if jwtMgr == nil {
			return clientIPKey(r)
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			return clientIPKey(r)
		}
		claims, err := jwtMgr.VerifyIDToken(strings.TrimSpace(auth[7:]))
		if err != nil || claims.Subject == "" {
			return clientIPKey(r)
		}
		return "sub:" + claims.Subject
	}
}

func clientIPKey(r *http.Request) string {
	if ip := parseRequestIP(r); ip != nil {
		return ip.String()
	}
	return r.RemoteAddr
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}

func writeRateLimitHeaders(h http.Header, limit int, decision Decision) {
	h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
	resetAt := decision.ResetAt
	if resetAt.IsZero() {
		resetAt = time.Now().Add(time.Second)
	}
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
}
