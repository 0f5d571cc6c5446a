package http

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/allisson/mailqueue/internal/httputil"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterMaxIdle       = time.Hour
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientBuckets keeps one token bucket per client IP.
type clientBuckets struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	limit   rate.Limit
	burst   int
}

func newClientBuckets(rps float64, burst int) *clientBuckets {
	return &clientBuckets{
		buckets: make(map[string]*clientBucket),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

// take spends one token for ip at now. When the bucket is empty it returns false and the
// wait until the next token.
func (b *clientBuckets) take(ip string, now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	bucket, ok := b.buckets[ip]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.buckets[ip] = bucket
	}
	bucket.lastSeen = now
	b.mu.Unlock()

	if bucket.limiter.AllowN(now, 1) {
		return true, 0
	}

	reservation := bucket.limiter.ReserveN(now, 1)
	wait := reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return false, wait
}

// sweep drops buckets not used since threshold and returns how many remain.
func (b *clientBuckets) sweep(threshold time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ip, bucket := range b.buckets {
		if bucket.lastSeen.Before(threshold) {
			delete(b.buckets, ip)
		}
	}
	return len(b.buckets)
}

func (b *clientBuckets) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.sweep(now.Add(-limiterMaxIdle))
		}
	}
}

// IPRateLimitMiddleware throttles submissions per client IP with a token bucket of rps
// tokens per second and the given burst. Throttled requests get 429 with Retry-After.
// Idle buckets are swept until ctx is done.
func IPRateLimitMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	buckets := newClientBuckets(rps, burst)
	go buckets.sweepLoop(ctx)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		allowed, retryAfter := buckets.take(clientIP, time.Now())
		if !allowed {
			logger.Debug("submission rate limit exceeded",
				slog.String("client_ip", clientIP),
				slog.Duration("retry_after", retryAfter))

			httputil.HandleRateLimitedGin(c, retryAfter)
			c.Abort()
			return
		}

		c.Next()
	}
}
