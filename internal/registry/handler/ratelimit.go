package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// Buckets idle longer than this are dropped by the sweeper.
	bucketIdleTTL = 10 * time.Minute
	sweepInterval = 5 * time.Minute
)

// bucketTable maps client IPs to their token buckets. Issue and update
// requests carry signature verification work, so the write surface gets the
// same per-client budget as the read surface.
type bucketTable struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	rps     rate.Limit
	burst   int
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (t *bucketTable) take(ip string) bool {
	t.mu.Lock()
	b, ok := t.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	t.mu.Unlock()
	return b.limiter.Allow()
}

func (t *bucketTable) sweep() {
	for {
		time.Sleep(sweepInterval)
		t.mu.Lock()
		for ip, b := range t.buckets {
			if time.Since(b.lastSeen) > bucketIdleTTL {
				delete(t.buckets, ip)
			}
		}
		t.mu.Unlock()
	}
}

// RateLimiter returns a Gin middleware enforcing a per-IP token bucket of
// rps requests per second with the given burst ceiling.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	table := &bucketTable{
		buckets: make(map[string]*clientBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go table.sweep()

	return func(c *gin.Context) {
		if !table.take(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
