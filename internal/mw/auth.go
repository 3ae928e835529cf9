package mw

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"queue-ticket-backend/internal/auth"
)

// SecretHeader carries the shared secret of privileged requests.
const SecretHeader = "X-Queue-Secret"

// RequireRole rejects requests whose secret does not grant role.
func RequireRole(a auth.Authenticator, role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Authorize(c.Request.Context(), role, c.GetHeader(SecretHeader)); err != nil {
			log.Printf("Denied %s %s (%s role, request %s)", c.Request.Method, c.FullPath(), role, c.GetString(RequestIDKey))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
