package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig tunes the token bucket guarding the localization API. A
// solve request drives a multi-start descent across the solver's worker
// pool and is charged SolveWeight tokens; a residual lookup is a single
// point evaluation and is charged ResidualWeight. Both default to 1 when
// unset, making the limiter a plain per-request limiter.
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerSec float64 // Requests per second
	Burst          int     // Maximum burst size
	PerIP          bool    // Not read: clients are keyed by IP whenever PerUser is off or no claims are present
	PerUser        bool    // Rate limit per authenticated operator
	GlobalLimit    bool    // Global rate limit across all clients
	SolveWeight    int     // token cost of a /v1/solve request
	ResidualWeight int     // token cost of a /v1/residual request
}

// RateLimiter manages rate limiting for clients of the localization API.
type RateLimiter struct {
	config   RateLimitConfig
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	global   *rate.Limiter
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.SolveWeight < 1 {
		config.SolveWeight = 1
	}
	if config.ResidualWeight < 1 {
		config.ResidualWeight = 1
	}

	rl := &RateLimiter{
		config:   config,
		limiters: make(map[string]*rate.Limiter),
	}

	if config.GlobalLimit {
		rl.global = rate.NewLimiter(rate.Limit(config.RequestsPerSec), config.Burst)
	}

	// Start cleanup goroutine to prevent memory leaks
	go rl.cleanup()

	return rl
}

// getLimiter returns the rate limiter for a specific key
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	limiter, exists = rl.limiters[key]
	if exists {
		return limiter
	}

	// Create new limiter for this key
	limiter = rate.NewLimiter(rate.Limit(rl.config.RequestsPerSec), rl.config.Burst)
	rl.limiters[key] = limiter

	return limiter
}

// cleanup checks every 10 minutes and, once more than 10000 per-client
// limiters exist, drops all of them to bound memory
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		if len(rl.limiters) > 10000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		rl.mu.Unlock()
	}
}

// weightForPath returns the token cost of a request to path. The solve
// endpoint runs a full multi-start descent and is charged more heavily
// than a single residual evaluation, so a handful of expensive solves
// exhaust a caller's burst the same way many cheap residual calls would.
func (rl *RateLimiter) weightForPath(path string) int {
	switch path {
	case "/v1/solve":
		return rl.config.SolveWeight
	case "/v1/residual":
		return rl.config.ResidualWeight
	default:
		return 1
	}
}

// RateLimitMiddleware creates a rate limiting middleware that charges each
// request the token cost of the endpoint it targets.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip if rate limiting is disabled
			if !limiter.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			weight := limiter.weightForPath(r.URL.Path)

			// Check global rate limit first
			if limiter.config.GlobalLimit && limiter.global != nil {
				if !limiter.global.AllowN(time.Now(), weight) {
					writeRateLimitError(w, "global rate limit exceeded")
					return
				}
			}

			// Determine the rate limit key
			var key string
			if limiter.config.PerUser {
				// Try to get operator claims from context (requires auth middleware)
				if claims, ok := GetClaimsFromContext(r.Context()); ok {
					key = fmt.Sprintf("operator:%s", claims.OperatorID)
				} else {
					// Fall back to IP if the caller isn't authenticated
					key = getClientIP(r)
				}
			} else {
				// Default to IP-based rate limiting
				key = getClientIP(r)
			}

			// Check per-client rate limit, charging this endpoint's weight
			clientLimiter := limiter.getLimiter(key)
			if !clientLimiter.AllowN(time.Now(), weight) {
				writeRateLimitError(w, fmt.Sprintf("rate limit exceeded for %s (this request costs %d tokens)", key, weight))
				return
			}

			// Set rate limit headers
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.config.Burst))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%.0f", clientLimiter.Tokens()))
			w.Header().Set("X-RateLimit-Cost", fmt.Sprintf("%d", weight))

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for proxies/load balancers)
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// Take the first IP if multiple are present
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			forwarded = forwarded[:i]
		}
		return strings.TrimSpace(forwarded)
	}

	// Check X-Real-IP header
	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	// Fall back to RemoteAddr
	return r.RemoteAddr
}

// writeRateLimitError writes a rate limit error response
func writeRateLimitError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "60") // Suggest retry after 60 seconds
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error": "%s", "status": 429}`, message)
}
