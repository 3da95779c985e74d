package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAccountTypes lets the request through only for the listed account types.
func RequireAccountTypes(allowed ...string) gin.HandlerFunc {
	allowedSet := map[string]struct{}{}
	for _, t := range allowed {
		allowedSet[t] = struct{}{}
	}
	return func(c *gin.Context) {
		_, accountType, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if _, ok := allowedSet[accountType]; !ok {
			abort(c, http.StatusForbidden, "Forbidden")
			return
		}
		c.Next()
	}
}
