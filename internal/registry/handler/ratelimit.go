package handler

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterStaleAfter = 10 * time.Minute
)

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterKey identifies the caller for rate limiting. Authenticated
// institutions are limited per token so several banks behind one state
// data-center NAT don't share a bucket; anonymous reads fall back to the
// client IP.
func limiterKey(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return "tok:" + strings.TrimPrefix(header, "Bearer ")
	}
	return "ip:" + c.ClientIP()
}

// RateLimiter returns a Gin middleware enforcing a per-caller token
// bucket. rps is the steady-state requests per second; burst is the
// maximum burst size. Idle buckets are swept periodically.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*callerLimiter)

	go func() {
		for {
			time.Sleep(limiterSweepEvery)
			mu.Lock()
			for key, l := range limiters {
				if time.Since(l.lastSeen) > limiterStaleAfter {
					delete(limiters, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		key := limiterKey(c)

		mu.Lock()
		l, ok := limiters[key]
		if !ok {
			l = &callerLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[key] = l
		}
		l.lastSeen = time.Now()
		mu.Unlock()

		if !l.limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"kind":  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
