package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiter applies a token bucket per client address.
// Buckets of clients idle for longer than the expiry are dropped.
type RateLimiter struct {
	visitors *cache.Cache
	metrics  *Metrics
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows perSecond requests with the given burst per client.
func NewRateLimiter(perSecond float64, burst int, metrics *Metrics) *RateLimiter {
	return &RateLimiter{
		visitors: cache.New(3*time.Minute, time.Minute),
		metrics:  metrics,
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter(clientIP(r)).Allow() {
			rl.metrics.rateLimited.Inc()
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.visitors.Get(ip); ok {
		rl.visitors.Set(ip, v, cache.DefaultExpiration)
		return v.(*rate.Limiter)
	}

	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.visitors.Set(ip, l, cache.DefaultExpiration)
	return l
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
