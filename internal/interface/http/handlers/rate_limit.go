package handlers

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER MIDDLEWARE
// Token bucket per client on write endpoints. Clients that keep hitting the
// limit are turned away for BanDuration.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate per client.
	RequestsPerMinute int

	// BurstSize is the bucket capacity.
	BurstSize int

	// CleanupInterval is how often idle clients are dropped. Zero disables
	// the background sweep.
	CleanupInterval time.Duration

	// IdleTimeout is how long a client may stay silent before it is dropped.
	IdleTimeout time.Duration

	// BanThreshold violations within ViolationWindow ban the client.
	// Zero disables bans.
	BanThreshold    int
	ViolationWindow time.Duration
	BanDuration     time.Duration
}

// DefaultRateLimitConfig returns the defaults used by cmd/server.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
		BurstSize:         20,
		CleanupInterval:   5 * time.Minute,
		IdleTimeout:       10 * time.Minute,
		BanThreshold:      50,
		ViolationWindow:   time.Minute,
		BanDuration:       5 * time.Minute,
	}
}

// RateLimitResult is the outcome of one Check.
type RateLimitResult struct {
	Allowed    bool
	Banned     bool
	RetryAfter time.Duration
	Remaining  int
}

type rateClient struct {
	limiter       *rate.Limiter
	lastSeen      time.Time
	violations    int
	lastViolation time.Time
	bannedUntil   time.Time
}

// RateLimiter tracks one token bucket per client key.
type RateLimiter struct {
	config RateLimitConfig
	limit  rate.Limit
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*rateClient

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.BurstSize < 1 {
		config.BurstSize = 1
	}
	rl := &RateLimiter{
		config:  config,
		limit:   rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		now:     time.Now,
		clients: make(map[string]*rateClient),
		stop:    make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

// Close stops the cleanup loop.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Check consumes a token for key.
func (rl *RateLimiter) Check(key string) RateLimitResult {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &rateClient{limiter: rate.NewLimiter(rl.limit, rl.config.BurstSize)}
		rl.clients[key] = c
	}
	c.lastSeen = now

	if now.Before(c.bannedUntil) {
		return RateLimitResult{Banned: true, RetryAfter: c.bannedUntil.Sub(now)}
	}

	if c.limiter.AllowN(now, 1) {
		return RateLimitResult{Allowed: true, Remaining: int(c.limiter.TokensAt(now))}
	}

	if now.Sub(c.lastViolation) > rl.config.ViolationWindow {
		c.violations = 0
	}
	c.violations++
	c.lastViolation = now
	if rl.config.BanThreshold > 0 && c.violations >= rl.config.BanThreshold {
		c.bannedUntil = now.Add(rl.config.BanDuration)
		c.violations = 0
		return RateLimitResult{Banned: true, RetryAfter: rl.config.BanDuration}
	}

	return RateLimitResult{RetryAfter: rl.retryAfter(c.limiter.TokensAt(now))}
}

// retryAfter is the time until the bucket holds a whole token again.
func (rl *RateLimiter) retryAfter(tokens float64) time.Duration {
	if rl.limit <= 0 {
		return time.Minute
	}
	deficit := 1 - tokens
	return time.Duration(deficit / float64(rl.limit) * float64(time.Second))
}

// Reset forgets the state of key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	delete(rl.clients, key)
	rl.mu.Unlock()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup drops idle clients whose ban has expired.
func (rl *RateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.config.IdleTimeout && !now.Before(c.bannedUntil) {
			delete(rl.clients, key)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTP
// ─────────────────────────────────────────────────────────────────────────────

// ClientKey identifies the caller by the {id} path value, falling back to the
// remote IP. It must run on a handler registered with a pattern.
func ClientKey(r *http.Request) string {
	if id := r.PathValue("id"); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Middleware answers 429 with Retry-After once a client runs out of tokens.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := rl.Check(ClientKey(r))
		if res.Allowed {
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			next.ServeHTTP(w, r)
			return
		}

		secs := int(math.Ceil(res.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		if res.Banned {
			writeError(w, http.StatusTooManyRequests, "temporarily_blocked", "Too many requests, try again later")
			return
		}
		writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
	})
}
