package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit allows maxRequests per window per client IP. When a Redis client
// is configured the window is shared across server instances; otherwise each
// process keeps its own token buckets. maxRequests <= 0 disables limiting.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	if maxRequests <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	local := newLocalLimiter(maxRequests, window)
	redisLimit := RedisRateLimit(maxRequests, window)

	return func(c *gin.Context) {
		if redisClient != nil {
			redisLimit(c)
			return
		}
		if !local.allow(c.ClientIP()) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// localLimiter keeps one token bucket per IP. A bucket idle for a whole
// window is full again, so it is dropped and recreated on the next request.
type localLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	idle    time.Duration
	clients map[string]*visitor
	swept   time.Time
	now     func() time.Time
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

func newLocalLimiter(maxRequests int, window time.Duration) *localLimiter {
	return &localLimiter{
		every:   rate.Every(window / time.Duration(maxRequests)),
		burst:   maxRequests,
		idle:    window,
		clients: make(map[string]*visitor),
		now:     time.Now,
	}
}

func (l *localLimiter) allow(ip string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.swept) >= l.idle {
		l.sweep(now)
	}
	v, ok := l.clients[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.every, l.burst)}
		l.clients[ip] = v
	}
	v.seen = now
	l.mu.Unlock()
	return v.lim.AllowN(now, 1)
}

// sweep runs with mu held.
func (l *localLimiter) sweep(now time.Time) {
	for ip, v := range l.clients {
		if now.Sub(v.seen) >= l.idle {
			delete(l.clients, ip)
		}
	}
	l.swept = now
}

func (l *localLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
