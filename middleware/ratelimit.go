package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	walletauth "github.com/MrEthical07/walletauth"
)

const (
	maxLimiters = 10000
	sweepEvery  = 5 * time.Minute
	limiterIdle = 15 * time.Minute
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter is a per-IP token bucket. Idle buckets are swept on access.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter allows requestsPerSecond on average per IP with the given burst.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters:  make(map[string]*limiterEntry),
		rate:      rate.Limit(requestsPerSecond),
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// RateLimit is shorthand for NewRateLimiter(rps, burst).Middleware().
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	return NewRateLimiter(rps, burst).Middleware()
}

// Allow reports whether key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	if now.Sub(rl.lastSweep) > sweepEvery || len(rl.limiters) >= maxLimiters {
		rl.sweep(now)
	}
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastAccess = now
	rl.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// sweep drops idle buckets. When the map is still full every bucket is
// dropped; a reset bucket only grants a fresh burst.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, e := range rl.limiters {
		if now.Sub(e.lastAccess) > limiterIdle {
			delete(rl.limiters, key)
		}
	}
	if len(rl.limiters) >= maxLimiters {
		clear(rl.limiters)
	}
	rl.lastSweep = now
}

// Middleware rejects requests over budget with 429.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientContext records the caller's IP and User-Agent on the request context
// for sign-in throttling and audit records. Mount it after a RealIP rewrite
// when running behind a proxy.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := walletauth.WithClientIP(r.Context(), remoteHost(r.RemoteAddr))
		if ua := r.UserAgent(); ua != "" {
			ctx = walletauth.WithUserAgent(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if ip := walletauth.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return remoteHost(r.RemoteAddr)
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
