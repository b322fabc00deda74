package api

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// throttle holds one token bucket per client address so a single
// chatty caller cannot starve the rest of the API.
type throttle struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newThrottle(rps float64, burst int) *throttle {
	return &throttle{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

// allow reports whether the client identified by addr may proceed,
// creating its bucket on first sight.
func (t *throttle) allow(addr string) bool {
	t.mu.RLock()
	b := t.buckets[addr]
	t.mu.RUnlock()
	if b == nil {
		t.mu.Lock()
		if b = t.buckets[addr]; b == nil {
			b = rate.NewLimiter(t.limit, t.burst)
			t.buckets[addr] = b
		}
		t.mu.Unlock()
	}
	return b.Allow()
}

// middleware rejects over-limit requests with 429 before they reach
// the handlers.
func (t *throttle) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.allow(clientAddr(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr prefers the proxy-set X-Real-IP header and falls back to
// the socket address with the port stripped, so every request from one
// host shares a bucket regardless of its source port.
func clientAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
