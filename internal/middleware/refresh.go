package middleware

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/go-orgauth/orgauth/internal/services"
	"github.com/go-orgauth/orgauth/internal/session"
)

// refreshExemptPaths are endpoints that run before a session exists or tear
// one down; refreshing there is wasted work at best.
var refreshExemptPaths = map[string]bool{
	"/auth/url":      true,
	"/auth/callback": true,
	"/auth/logout":   true,
}

// TokenRefresh transparently refreshes the session's token bundle when it is
// close to expiry. Unauthenticated requests and refresh failures pass through
// untouched; enforcement belongs to RequireSession and the provider.
func TokenRefresh(lifecycle *services.TokenLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		if refreshExemptPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		record, err := session.User(c)
		if err != nil {
			c.Next()
			return
		}

		if _, err := lifecycle.EnsureFresh(c, record); err != nil {
			log.Printf("Token refresh failed for subject %s, continuing with existing token: %v",
				record.SubjectID, err)
		}
		c.Next()
	}
}
