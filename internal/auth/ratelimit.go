package auth

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// LoginRateLimiter applies a token-bucket limit per client IP on the
// credential endpoints. It throttles online guessing from a single source;
// the account lockout policy covers distributed guessing against one
// account.
func LoginRateLimiter(perMinute, burst int) fiber.Handler {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = perMinute
	}

	type bucket struct {
		lim *rate.Limiter
		ts  time.Time
	}
	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
	)
	const ttl = 10 * time.Minute

	return func(c *fiber.Ctx) error {
		now := time.Now()
		ip := c.IP()

		mu.Lock()
		b, ok := buckets[ip]
		if !ok {
			b = &bucket{lim: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)}
			buckets[ip] = b
			if len(buckets) > 10000 {
				for key, old := range buckets {
					if now.Sub(old.ts) > ttl {
						delete(buckets, key)
					}
				}
			}
		}
		b.ts = now
		allowed := b.lim.Allow()
		mu.Unlock()

		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{"code": "RATE_LIMITED", "message": "too many attempts"},
			})
		}
		return c.Next()
	}
}
