package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/go-orgauth/orgauth/internal/models"
)

// SessionUser returns the record parked by RequireSession, or nil when the
// request is unauthenticated.
func SessionUser(c *gin.Context) *models.SessionRecord {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	record, _ := v.(*models.SessionRecord)
	return record
}
