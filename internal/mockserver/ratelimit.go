package mockserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// bucketIdleTTL is how long an API key's bucket survives without traffic
const bucketIdleTTL = 5 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyLimiter keeps one token bucket per API key. Idle buckets are swept
// on access, so the limiter owns no goroutine and needs no shutdown.
type keyLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newKeyLimiter(requestsPerSecond float64, burst int) *keyLimiter {
	return &keyLimiter{
		buckets:   make(map[string]*bucket),
		limit:     rate.Limit(requestsPerSecond),
		burst:     burst,
		idleTTL:   bucketIdleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// allow reports whether key may send one more request now
func (l *keyLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idleTTL {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	return b.limiter.AllowN(now, 1)
}

func (l *keyLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *keyLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// PerKey creates middleware that rate limits by the caller's API key.
// It must run after BearerAuth.
func PerKey(requestsPerSecond float64, burst int) gin.HandlerFunc {
	return perKey(newKeyLimiter(requestsPerSecond, burst))
}

func perKey(limiter *keyLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.allow(c.GetString(ctxAPIKey)) {
			abortWithError(c, http.StatusTooManyRequests, "Requests rate limit exceeded")
			return
		}
		c.Next()
	}
}
