package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/baharkarakas/coinmatch/internal/api/httpx"
)

type tokenBucket struct {
	tokens float64
	last   time.Time
}

// A bucket idle for idleWindows full refills is back at burst, so it is
// dropped and recreated on the client's next request.
const idleWindows = 3

type limiter struct {
	mu        sync.Mutex
	rate      float64
	burst     float64
	buckets   map[string]*tokenBucket
	now       func() time.Time
	lastPrune time.Time
}

func (l *limiter) idleAfter() time.Duration {
	return time.Duration(idleWindows * l.burst / l.rate * float64(time.Second))
}

// prune must be called with mu held. It sweeps at most once per idle period.
func (l *limiter) prune(now time.Time) {
	idle := l.idleAfter()
	if now.Sub(l.lastPrune) < idle {
		return
	}
	l.lastPrune = now
	for key, b := range l.buckets {
		if now.Sub(b.last) >= idle {
			delete(l.buckets, key)
		}
	}
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	}
	b.tokens += now.Sub(b.last).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimit allows rps requests per second per client address, with bursts
// of up to rps. rps <= 0 disables it.
func RateLimit(rps int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newLimiter(rps, time.Now)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientKey(r)) {
				httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newLimiter(rps int, now func() time.Time) *limiter {
	return &limiter{rate: float64(rps), burst: float64(rps), buckets: map[string]*tokenBucket{}, now: now, lastPrune: now()}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
