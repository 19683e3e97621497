package middleware

import (
	"context"  // Context for session lookups
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging

	"library_system/internal/domain" // Session type
	"library_system/internal/utils"  // JWT utility functions
)

const sessionKey = "session"

// SessionSource rebuilds a session from the user id carried by a token
type SessionSource interface {
	SessionFor(ctx context.Context, userID uint) (domain.Session, error)
}

// JWTAuthMiddleware validates the bearer token and stores the caller's
// domain.Session in the gin context. The user is re-read on every request so
// role changes and deletions apply immediately.
func JWTAuthMiddleware(secret string, sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":  "Missing or invalid Authorization header",
				"reason": domain.ReasonUnauthorized,
			})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string
		claims, err := utils.ParseJWT(tokenStr, secret)       // Parse the JWT token
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":  "Invalid or expired token",
				"reason": domain.ReasonUnauthorized,
			})
			return
		}
		sess, err := sessions.SessionFor(c.Request.Context(), claims.UserID)
		if err != nil {
			if f, ok := domain.AsFailure(err); ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": f.Message, "reason": f.Reason})
				return
			}
			logrus.WithFields(logrus.Fields{"user_id": claims.UserID, "error": err.Error()}).Error("Failed to load session")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.Set(sessionKey, sess) // Store the session in context
		c.Next()
	}
}

// Session returns the session stored by JWTAuthMiddleware
func Session(c *gin.Context) (domain.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return domain.Session{}, false
	}
	sess, ok := v.(domain.Session)
	return sess, ok
}

// SetSession stores sess in the context
func SetSession(c *gin.Context, sess domain.Session) {
	c.Set(sessionKey, sess)
}
