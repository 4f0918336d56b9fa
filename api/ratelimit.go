package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL      = 10 * time.Minute
	limiterSweepEvery   = time.Minute
	retryAfterSeconds   = "60"
	tooManyRequestsBody = "too many requests"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out a token bucket per client IP and evicts buckets
// for clients that have gone quiet.
type IPRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rate    rate.Limit
	burst   int
}

// NewIPRateLimiter creates a limiter allowing r events per second per IP
// with the given burst. For "300 per minute" pass rate.Every(200*time.Millisecond).
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	rl := &IPRateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    r,
		burst:   burst,
	}
	go rl.sweep()
	return rl
}

// Allow reports whether a request from the given IP may proceed.
func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	entry, ok := rl.clients[ip]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

func (rl *IPRateLimiter) sweep() {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for ip, entry := range rl.clients {
			if time.Since(entry.lastSeen) > limiterIdleTTL {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// clientIP extracts the requesting IP, honoring reverse-proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimitHandler wraps a handler with per-IP rate limiting, answering
// 429 with a Retry-After when the bucket is empty.
func RateLimitHandler(rl *IPRateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfterSeconds)
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": tooManyRequestsBody})
			return
		}
		next.ServeHTTP(w, r)
	})
}
