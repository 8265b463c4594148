package bootstrap

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/go-orgauth/orgauth/internal/config"
	"github.com/go-orgauth/orgauth/internal/metrics"
	"github.com/go-orgauth/orgauth/internal/middleware"
	"github.com/go-orgauth/orgauth/internal/services"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	h handlerSet,
	lifecycle *services.TokenLifecycle,
	recorder metrics.Recorder,
	rateLimitRedisClient *redis.Client,
) *gin.Engine {
	setupGinMode(cfg)
	r := gin.New()

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(createCORSMiddleware(cfg))

	// Session handling plus inline token refresh on authenticated requests
	setupSessionMiddleware(r, cfg)
	r.Use(middleware.TokenRefresh(lifecycle))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Setup metrics endpoint
	setupMetricsEndpoint(r, cfg)

	// Setup rate limiting
	rateLimiter := setupRateLimiting(cfg, rateLimitRedisClient)

	// Setup all routes
	setupRoutes(r, h, rateLimiter)

	logServerStartup(cfg)

	return r
}

// setupRoutes registers the auth and connector routes
func setupRoutes(r *gin.Engine, h handlerSet, rateLimiter gin.HandlerFunc) {
	auth := r.Group("/auth")
	if rateLimiter != nil {
		auth.Use(rateLimiter)
	}
	auth.POST("/url", h.Auth.AuthURL)
	auth.POST("/callback", h.Auth.Callback)
	auth.GET("/user", middleware.RequireSession(), h.Auth.UserInfo)
	auth.POST("/logout", middleware.RequireSession(), h.Auth.Logout)
	auth.POST("/switch-org", middleware.RequireSession(), h.Auth.SwitchOrg)

	conn := r.Group("/connectors", middleware.RequireSession())
	conn.GET("", h.Connector.List)
	conn.POST("/connect", h.Connector.Connect)
	conn.GET("/:key/status", h.Connector.Status)
	conn.POST("/:key/disconnect", h.Connector.Disconnect)
}

// setupGinMode sets the Gin mode based on environment
func setupGinMode(cfg *config.Config) {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
}

// createCORSMiddleware configures CORS for the browser client. Credentials
// must be allowed because the session rides on a cookie.
func createCORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuth(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	log.Printf("Server starting on %s", cfg.ServerAddr)
	log.Printf("Base URL: %s", cfg.BaseURL)
	log.Printf("OAuth redirect URI: %s", cfg.IdPRedirectURI)
}
