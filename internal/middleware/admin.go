package middleware

import (
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework

	"library_system/internal/domain"
)

// AdminOnlyMiddleware lets only ADMIN sessions through. It must run after
// JWTAuthMiddleware, which loads the role from the database.
func AdminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := Session(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "reason": domain.ReasonUnauthorized})
			return
		}
		if !sess.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required", "reason": domain.ReasonForbidden})
			return
		}
		c.Next()
	}
}
