package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg RateLimitConfig) (*RateLimiter, *fakeClock) {
	cfg.CleanupInterval = 0
	rl := NewRateLimiter(cfg)
	clock := &fakeClock{t: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 2})

	assert.True(t, rl.Check("u1").Allowed)
	assert.True(t, rl.Check("u1").Allowed)

	res := rl.Check("u1")
	assert.False(t, res.Allowed)
	assert.False(t, res.Banned)
	assert.InDelta(t, time.Second, res.RetryAfter, float64(10*time.Millisecond))

	// Other clients have their own bucket.
	assert.True(t, rl.Check("u2").Allowed)

	clock.advance(time.Second)
	assert.True(t, rl.Check("u1").Allowed)
}

func TestRateLimiter_BanAfterRepeatedViolations(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		BanThreshold:      2,
		ViolationWindow:   time.Minute,
		BanDuration:       5 * time.Minute,
	})

	require.True(t, rl.Check("u1").Allowed)
	assert.False(t, rl.Check("u1").Banned)

	res := rl.Check("u1")
	assert.True(t, res.Banned)
	assert.Equal(t, 5*time.Minute, res.RetryAfter)

	// Refilled tokens do not lift the ban.
	clock.advance(time.Minute)
	res = rl.Check("u1")
	assert.True(t, res.Banned)
	assert.Equal(t, 4*time.Minute, res.RetryAfter)

	clock.advance(4 * time.Minute)
	assert.True(t, rl.Check("u1").Allowed)
}

func TestRateLimiter_ViolationsExpire(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         1,
		BanThreshold:      2,
		ViolationWindow:   10 * time.Second,
		BanDuration:       time.Minute,
	})

	require.True(t, rl.Check("u1").Allowed)
	assert.False(t, rl.Check("u1").Allowed)

	clock.advance(20 * time.Second)
	res := rl.Check("u1")
	assert.False(t, res.Allowed)
	assert.False(t, res.Banned)
}

func TestRateLimiter_CleanupDropsIdleClients(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 1, IdleTimeout: time.Minute})

	rl.Check("idle")
	clock.advance(30 * time.Second)
	rl.Check("active")
	clock.advance(45 * time.Second)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.clients, "idle")
	assert.Contains(t, rl.clients, "active")
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 1})

	mux := http.NewServeMux()
	mux.Handle("POST /users/{id}/sessions", rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	do := func(user string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/"+user+"/sessions", nil))
		return rec
	}

	assert.Equal(t, http.StatusCreated, do("alice").Code)

	rec := do("alice")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"rate_limited"`)

	assert.Equal(t, http.StatusCreated, do("bob").Code)
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "ip:10.0.0.7", ClientKey(r))

	r.SetPathValue("id", "u-1")
	assert.Equal(t, "user:u-1", ClientKey(r))
}
