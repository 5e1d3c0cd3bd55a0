package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"couplespace/internal/handlers"
)

// AuthMiddleware validates the Authorization header against the
// in-memory session registry.
func AuthMiddleware(sessions *handlers.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		session, ok := sessions.Validate(parts[1])
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", session.UserID)
		c.Set("role", string(session.Role))
		c.Next()
	}
}
