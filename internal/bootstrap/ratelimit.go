package bootstrap

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/go-orgauth/orgauth/internal/config"
	"github.com/go-orgauth/orgauth/internal/middleware"
)

// setupRateLimiting creates the rate limiter for the auth endpoints.
// Returns nil when rate limiting is disabled.
func setupRateLimiting(cfg *config.Config, redisClient *redis.Client) gin.HandlerFunc {
	if !cfg.EnableRateLimit {
		return nil
	}

	limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.AuthRateLimit,
		CleanupInterval:   cfg.RateLimitCleanupInterval,
		StoreType:         middleware.RateLimitStoreType(cfg.RateLimitStore),
		// The shared client already passed its startup health check and gets
		// closed by the shutdown job.
		RedisClient: redisClient,
	})
	if err != nil {
		log.Fatalf("Failed to create rate limiter: %v", err)
	}

	log.Printf(
		"Rate limiting enabled on auth endpoints (%d req/min, store: %s)",
		cfg.AuthRateLimit,
		cfg.RateLimitStore,
	)
	return limiter
}
