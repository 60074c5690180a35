package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Limiter allows at most limit requests per interval from each client,
// counted over a sliding window.
type Limiter struct {
	mu       sync.Mutex
	hits     map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

// NewLimiter creates a limiter. A non-positive limit disables it.
func NewLimiter(limit int, interval time.Duration) *Limiter {
	return &Limiter{
		hits:     make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow records a request from client and reports whether it is within the
// limit. Rejected requests are not recorded.
func (l *Limiter) Allow(client string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(client, now)
	if len(recent) >= l.limit {
		return false
	}
	l.hits[client] = append(recent, now)
	return true
}

// RetryAfter is how long client must wait before its next request is
// allowed.
func (l *Limiter) RetryAfter(client string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	recent := l.prune(client, now)
	if len(recent) < l.limit || len(recent) == 0 {
		return 0
	}
	return recent[0].Add(l.interval).Sub(now)
}

func (l *Limiter) prune(client string, now time.Time) []time.Time {
	cutoff := now.Add(-l.interval)
	ts := l.hits[client]
	keep := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	if len(keep) == 0 {
		delete(l.hits, client)
		return nil
	}
	l.hits[client] = keep
	return keep
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.Allow(ip) {
			secs := int(l.RetryAfter(ip).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
