package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"licensedesk/api/internal/authz"
)

// Authorize gates a route on the policy table. A denial aborts before the
// handler runs, so forbidden requests can have no side effects.
func Authorize(action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := CurrentAccount(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		if !authz.Permits(account.Role, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
