package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(t *testing.T, perMinute int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limiter, err := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: perMinute,
		StoreType:         RateLimitStoreMemory,
		CleanupInterval:   time.Minute,
	})
	require.NoError(t, err)

	r := gin.New()
	r.Use(limiter)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return r
}

func doLimited(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterMemoryStore(t *testing.T) {
	r := newLimitedRouter(t, 3)

	for i := 0; i < 3; i++ {
		w := doLimited(r, "192.168.1.100")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
	}

	w := doLimited(r, "192.168.1.100")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	assert.Contains(t, w.Body.String(), "Too many requests")
}

func TestRateLimiterIndependentIPs(t *testing.T) {
	r := newLimitedRouter(t, 1)

	assert.Equal(t, http.StatusOK, doLimited(r, "192.168.1.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doLimited(r, "192.168.1.1").Code)

	// A different client is not affected.
	assert.Equal(t, http.StatusOK, doLimited(r, "192.168.1.2").Code)
}

func TestRateLimiterUsesProvidedRedisClient(t *testing.T) {
	// A provided client is adopted as-is: no second dial, no health check.
	// The unreachable address proves construction never touches the network.
	client := redis.NewClient(&redis.Options{Addr: "invalid-host:9999"})
	defer client.Close()

	limiter, err := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 10,
		StoreType:         RateLimitStoreRedis,
		RedisClient:       client,
		CleanupInterval:   time.Minute,
	})

	require.NoError(t, err)
	assert.NotNil(t, limiter)
}

func TestRateLimiterRedisUnreachable(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 10,
		StoreType:         RateLimitStoreRedis,
		RedisAddr:         "invalid-host:9999",
	})

	assert.Error(t, err)
	assert.Nil(t, limiter)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
