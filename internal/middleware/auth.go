package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/go-orgauth/orgauth/internal/session"
)

// userContextKey is where RequireSession parks the decoded session record for
// downstream handlers.
const userContextKey = "session_user"

// RequireSession rejects requests without an authenticated session. The
// decoded record is stored on the gin context for handlers.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := session.User(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":         "Authentication required",
				"authenticated": false,
			})
			return
		}
		c.Set(userContextKey, record)
		c.Next()
	}
}
