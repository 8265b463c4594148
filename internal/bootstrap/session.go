package bootstrap

import (
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"

	"github.com/go-orgauth/orgauth/internal/config"
)

// setupSessionMiddleware configures session handling middleware. The cookie
// backend needs no infrastructure but is last-write-wins under concurrent
// requests; the redis backend serializes through shared storage.
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	store := createSessionStore(cfg)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cfg.SessionCookieName, store))
}

func createSessionStore(cfg *config.Config) sessions.Store {
	if cfg.SessionBackend == config.SessionBackendRedis {
		store, err := redis.NewStore(
			10,
			"tcp",
			cfg.RedisAddr,
			"",
			cfg.RedisPassword,
			[]byte(cfg.SessionSecret),
		)
		if err != nil {
			log.Fatalf("Failed to create Redis session store: %v", err)
		}
		log.Printf("Session store: redis (address: %s)", cfg.RedisAddr)
		return store
	}

	log.Printf("Session store: cookie")
	return cookie.NewStore([]byte(cfg.SessionSecret))
}
