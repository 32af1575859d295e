// internal/api/middleware_test.go
package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterTokenBucket(t *testing.T) {
	rl := &RateLimiter{visitors: make(map[string]*visitor), stop: make(chan struct{})}
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("k", 3, time.Minute)
		assert.True(t, ok)
	}
	ok, v := rl.Allow("k", 3, time.Minute)
	assert.False(t, ok)
	assert.Equal(t, 0, v.Remaining)
	assert.Equal(t, 3, v.Limit)
	assert.True(t, v.Reset.After(now))

	ok, _ = rl.Allow("other", 3, time.Minute)
	assert.True(t, ok)

	// One token refills every 20 seconds.
	now = now.Add(21 * time.Second)
	ok, v = rl.Allow("k", 3, time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 0, v.Remaining)

	now = now.Add(time.Minute + time.Second)
	ok, v = rl.Allow("k", 3, time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 2, v.Remaining)

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.visitors)
}

func TestRateLimitByIPOnAPI(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	a := newTestAPI(t, cfg)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/health", nil, "").Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/quests", nil, "").Code)
	w := a.do(http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))

	// The root route sits outside /api.
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/", nil, "").Code)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken(""))
}

func TestCORSConfig(t *testing.T) {
	all := corsConfig([]string{"*"})
	assert.True(t, all.AllowAllOrigins)
	assert.False(t, all.AllowCredentials)

	some := corsConfig([]string{"http://localhost:3000"})
	assert.False(t, some.AllowAllOrigins)
	assert.True(t, some.AllowCredentials)
	assert.Equal(t, []string{"http://localhost:3000"}, some.AllowOrigins)
}
