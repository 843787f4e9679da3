package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// pruneEvery bounds how many new windows open before expired ones are dropped.
const pruneEvery = 256

type window struct {
	count int
	until time.Time
}

type limiter struct {
	limit  int
	per    time.Duration
	now    func() time.Time
	mu     sync.Mutex
	seen   map[string]*window
	opened int
}

func newLimiter(limit int, per time.Duration) *limiter {
	return &limiter{limit: limit, per: per, now: time.Now, seen: make(map[string]*window)}
}

// allow counts one request for key and returns how many remain in the
// current window, or the wait until it resets when the limit is reached.
func (l *limiter) allow(key string) (remaining int, retryAfter time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, found := l.seen[key]
	if !found || !now.Before(w.until) {
		w = &window{until: now.Add(l.per)}
		l.seen[key] = w
		l.opened++
		if l.opened%pruneEvery == 0 {
			l.prune(now)
		}
	}
	if w.count >= l.limit {
		return 0, w.until.Sub(now), false
	}
	w.count++
	return l.limit - w.count, 0, true
}

func (l *limiter) prune(now time.Time) {
	for key, w := range l.seen {
		if !now.Before(w.until) {
			delete(l.seen, key)
		}
	}
}

// RateLimit caps each client at limit requests per window. Clients are keyed
// by remote host, so it belongs after chi's RealIP. A non-positive limit
// disables the check.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newLimiter(limit, per)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, wait, ok := l.allow(clientKey(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"Too many requests. Please wait a moment and try again."}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
