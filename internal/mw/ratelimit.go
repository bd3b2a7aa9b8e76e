package mw

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ClientRateLimiter stores a rate limiter for each client.
type ClientRateLimiter struct {
	clients map[string]*rate.Limiter
	mu      *sync.RWMutex
	r       rate.Limit
	b       int
}

// NewClientRateLimiter creates a new ClientRateLimiter.
func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients: make(map[string]*rate.Limiter),
		mu:      &sync.RWMutex{},
		r:       r,
		b:       b,
	}
}

// AddClient creates a new rate limiter for a client key.
func (i *ClientRateLimiter) AddClient(key string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	// another request may have added it since the read lock was released
	if limiter, exists := i.clients[key]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(i.r, i.b)
	i.clients[key] = limiter
	return limiter
}

// GetLimiter returns the rate limiter for a client key.
func (i *ClientRateLimiter) GetLimiter(key string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.clients[key]
	i.mu.RUnlock()

	if !exists {
		return i.AddClient(key)
	}
	return limiter
}

// ClientKey identifies the caller by ipHeader when the service sits behind a
// proxy, falling back to gin's ClientIP.
func ClientKey(c *gin.Context, ipHeader string) string {
	if ipHeader != "" {
		if v := strings.TrimSpace(c.GetHeader(ipHeader)); v != "" {
			// X-Forwarded-For style lists carry the client first
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = strings.TrimSpace(v[:i])
			}
			return v
		}
	}
	return c.ClientIP()
}

// RateLimiter is a middleware for per-client rate limiting.
func RateLimiter(r rate.Limit, b int, ipHeader string) gin.HandlerFunc {
	limiter := NewClientRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(ClientKey(c, ipHeader)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
