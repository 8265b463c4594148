package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session backend constants
const (
	SessionBackendCookie = "cookie"
	SessionBackendRedis  = "redis"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	IsProduction bool

	// Session settings
	SessionSecret     string
	SessionCookieName string
	SessionMaxAge     int    // seconds
	SessionBackend    string // "cookie" or "redis"

	// Redis (sessions and rate limiting)
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	// Identity provider
	IdPIssuerURL             string
	IdPClientID              string
	IdPClientSecret          string
	IdPRedirectURI           string
	IdPScopes                []string
	IdPPostLogoutRedirectURI string
	IdPTimeout               time.Duration
	IdPOrgClaimKeys          []string

	// Identity provider admin API (client-credentials calls)
	IdPAdminMaxRetries    int
	IdPAdminRetryDelay    time.Duration
	IdPAdminMaxRetryDelay time.Duration

	// Connector connection-name overrides (provider dashboard names)
	ConnectorGitHubConnection    string
	ConnectorSlackConnection     string
	ConnectorGoogleAdsConnection string

	// CORS
	CORSAllowedOrigins []string

	// Metrics
	MetricsEnabled bool
	MetricsToken   string

	// Rate limiting
	EnableRateLimit          bool
	AuthRateLimit            int // requests per minute on auth endpoints
	RateLimitStore           string
	RateLimitCleanupInterval time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		IsProduction: getEnv("ENVIRONMENT", "development") == "production",

		SessionSecret:     getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "org_session"),
		SessionMaxAge:     getEnvInt("SESSION_MAX_AGE", 3600),
		SessionBackend:    getEnv("SESSION_BACKEND", SessionBackendCookie),

		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisConnTimeout: getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),

		IdPIssuerURL:             getEnv("IDP_ISSUER_URL", ""),
		IdPClientID:              getEnv("IDP_CLIENT_ID", ""),
		IdPClientSecret:          getEnv("IDP_CLIENT_SECRET", ""),
		IdPRedirectURI:           getEnv("IDP_REDIRECT_URI", "http://localhost:3000/auth/callback"),
		IdPScopes:                getEnvFields("IDP_SCOPES", []string{"openid", "profile", "email", "offline_access"}),
		IdPPostLogoutRedirectURI: getEnv("IDP_POST_LOGOUT_REDIRECT_URI", ""),
		IdPTimeout:               getEnvDuration("IDP_TIMEOUT", 10*time.Second),
		IdPOrgClaimKeys:          getEnvSlice("IDP_ORG_CLAIM_KEYS", nil),

		IdPAdminMaxRetries:    getEnvInt("IDP_ADMIN_MAX_RETRIES", 3),
		IdPAdminRetryDelay:    getEnvDuration("IDP_ADMIN_RETRY_DELAY", 500*time.Millisecond),
		IdPAdminMaxRetryDelay: getEnvDuration("IDP_ADMIN_MAX_RETRY_DELAY", 5*time.Second),

		ConnectorGitHubConnection:    getEnv("CONNECTOR_GITHUB_CONNECTION", "github"),
		ConnectorSlackConnection:     getEnv("CONNECTOR_SLACK_CONNECTION", "slack"),
		ConnectorGoogleAdsConnection: getEnv("CONNECTOR_GOOGLE_ADS_CONNECTION", "google_ads"),

		CORSAllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", false),
		AuthRateLimit:            getEnvInt("AUTH_RATE_LIMIT", 30),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
	}
}

// Validate rejects missing or inconsistent configuration at startup, so that
// misconfiguration surfaces at process start rather than on the first request.
func (c *Config) Validate() error {
	if c.IdPIssuerURL == "" {
		return errors.New("IDP_ISSUER_URL is required")
	}
	if c.IdPClientID == "" {
		return errors.New("IDP_CLIENT_ID is required")
	}
	if c.IdPClientSecret == "" {
		return errors.New("IDP_CLIENT_SECRET is required")
	}
	if c.IdPRedirectURI == "" {
		return errors.New("IDP_REDIRECT_URI is required")
	}
	if c.IsProduction && c.SessionSecret == "session-secret-change-in-production" {
		return errors.New("SESSION_SECRET must be set in production")
	}
	switch c.SessionBackend {
	case SessionBackendCookie, SessionBackendRedis:
	default:
		return fmt.Errorf("invalid SESSION_BACKEND: %s (must be: cookie, redis)", c.SessionBackend)
	}
	switch c.RateLimitStore {
	case RateLimitStoreMemory, RateLimitStoreRedis:
	default:
		return fmt.Errorf("invalid RATE_LIMIT_STORE: %s (must be: memory, redis)", c.RateLimitStore)
	}
	if c.SessionMaxAge <= 0 {
		return errors.New("SESSION_MAX_AGE must be positive")
	}
	return nil
}

// PostLogoutRedirectURI resolves the configured post-logout redirect, falling
// back to the redirect URI with its callback path trimmed.
func (c *Config) PostLogoutRedirectURI() string {
	if c.IdPPostLogoutRedirectURI != "" {
		return c.IdPPostLogoutRedirectURI
	}
	return strings.TrimSuffix(c.IdPRedirectURI, "/auth/callback")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := splitAndTrim(value, ",")
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

// getEnvFields reads a whitespace-separated list (OAuth scope syntax).
func getEnvFields(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if fields := strings.Fields(value); len(fields) > 0 {
			return fields
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
