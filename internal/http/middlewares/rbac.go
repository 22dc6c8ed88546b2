package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireIdentity.
func RequireRole(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		role, _ := RoleFromContext(c)
		if role != required {
			abortWithError(c, http.StatusForbidden, "not_authorized", "Role " + required + " required")
			return
		}
		c.Next()
	}
}
