package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientIdleTTL is how long a client may stay silent before its token
// bucket is dropped.
const clientIdleTTL = 10 * time.Minute

// clientLimiter pairs a token bucket with the last time the client was
// seen, so idle entries can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks one token bucket per client address.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rate    rate.Limit
	burst   int
}

// NewRateLimiter allows r requests per second per client, with bursts of b.
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    r,
		burst:   b,
	}
}

// allow admits or rejects one request from addr.
func (rl *RateLimiter) allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[addr]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[addr] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter.Allow()
}

// evictIdle drops every client not seen since the cutoff.
func (rl *RateLimiter) evictIdle(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for addr, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, addr)
		}
	}
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(clientIdleTTL / 2)
	defer ticker.Stop()

	for range ticker.C {
		rl.evictIdle(time.Now().Add(-clientIdleTTL))
	}
}

// RateLimitMiddleware throttles requests per client IP. Federating
// servers retry failed deliveries, so throttled requests get an explicit
// 429 rather than a dropped connection.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	go rl.sweep()

	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// MaxBytesMiddleware caps request body size. The Content-Length check
// rejects oversized deliveries before any of the body is read; the
// MaxBytesReader covers chunked requests that never declare a length.
func MaxBytesMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large",
			})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
