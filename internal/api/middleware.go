// internal/api/middleware.go
package api

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per caller key.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

// Visitor is the quota snapshot reported to the caller.
type Visitor struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup loop.
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go rl.cleanupLoop(10 * time.Minute)
	return rl
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup drops visitors idle for longer than their window; a new bucket
// for them starts full, same as the one being dropped.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > v.window {
			delete(rl.visitors, key)
		}
	}
}

// Allow takes one token from key's bucket, which holds limit tokens and
// refills at limit per window. The snapshot reflects the bucket after
// the attempt.
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) (bool, Visitor) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists || v.limiter.Burst() != limit || v.window != window {
		v = &visitor{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			window:  window,
		}
		rl.visitors[key] = v
	}
	v.lastSeen = now

	allowed := v.limiter.AllowN(now, 1)
	tokens := math.Max(v.limiter.TokensAt(now), 0)
	interval := window / time.Duration(limit)
	missing := float64(limit) - tokens

	return allowed, Visitor{
		Limit:     limit,
		Remaining: int(math.Floor(tokens)),
		Reset:     now.Add(time.Duration(missing * float64(interval))),
	}
}

// RateLimitMiddleware rejects callers over limit per window with 429.
func (rl *RateLimiter) RateLimitMiddleware(scope string, limit int, window time.Duration, keyFunc func(*gin.Context) string, rh *ResponseHelper) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		allowed, quota := rl.Allow(scope+":"+keyFunc(c), limit, window)
		c.Header("X-RateLimit-Limit", strconv.Itoa(quota.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(quota.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(quota.Reset.Unix(), 10))

		if !allowed {
			rh.TooManyRequests(c)
			return
		}
		c.Next()
	}
}

// RateLimitByIP applies rate limiting based on client IP address
func (rl *RateLimiter) RateLimitByIP(limit int, window time.Duration, rh *ResponseHelper) gin.HandlerFunc {
	return rl.RateLimitMiddleware("ip", limit, window, func(c *gin.Context) string {
		return c.ClientIP()
	}, rh)
}

// RateLimitByUser keys on the authenticated user, falling back to the
// client IP when the route is public.
func (rl *RateLimiter) RateLimitByUser(scope string, limit int, window time.Duration, rh *ResponseHelper) gin.HandlerFunc {
	return rl.RateLimitMiddleware(scope, limit, window, func(c *gin.Context) string {
		if userID := currentUserID(c); userID != "" {
			return userID
		}
		return c.ClientIP()
	}, rh)
}
