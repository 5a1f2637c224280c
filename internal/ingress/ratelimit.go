package ingress

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter enforces a per-tenant sliding-window request rate, ahead of
// gatewaypipeline's token/cost quotas: it protects the gateway process
// itself from being overwhelmed by one tenant's call volume, independent of
// whether those calls would individually pass budget/quota checks.
// Adapted from internal/middleware/rate_limiter.go's read-first window
// tracker.
type RateLimiter struct {
	mu      sync.RWMutex
	windows map[string]*rateLimitWindow
	perMin  int
	burst   int
}

type rateLimitWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per tenant in
// a rolling one-minute window, with bursts up to burst before it starts
// rejecting. burst of zero defaults to 2x perMinute.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 600
	}
	if burst <= 0 {
		burst = perMinute * 2
	}
	rl := &RateLimiter{
		windows: make(map[string]*rateLimitWindow),
		perMin:  perMinute,
		burst:   burst,
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether a request keyed by tenantID is within its window.
func (rl *RateLimiter) Allow(tenantID string) bool {
	now := time.Now()

	rl.mu.RLock()
	window, exists := rl.windows[tenantID]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		window.count++
		count := window.count
		rl.mu.RUnlock()
		return count <= rl.burst
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	window, exists = rl.windows[tenantID]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		window.count++
		return window.count <= rl.burst
	}
	rl.windows[tenantID] = &rateLimitWindow{count: 1, windowStart: now}
	return true
}

// Middleware rejects a request with 429 once its resolved tenant exceeds
// the configured rate, tried after resolveTenantID so API-key callers are
// limited by their authenticated tenant, not the raw header.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		tenantID, err := s.resolveTenantID(r)
		if err != nil {
			tenantID = getTenantID(r)
		}
		if !s.limiter.Allow(tenantID) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"code":    "rate_limited",
				"message": "tenant request rate exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, window := range rl.windows {
			if now.Sub(window.windowStart) > 2*time.Minute {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}
