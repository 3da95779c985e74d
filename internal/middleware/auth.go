package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"veriboard/internal/authz"
	"veriboard/internal/services"
)

const (
	ctxUserID      = "user_id"
	ctxAccountType = "account_type"
)

// SessionParser validates a bearer token.
type SessionParser interface {
	ParseSession(token string) (*services.SessionClaims, error)
}

func AuthMiddleware(tokens SessionParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abort(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		claims, err := tokens.ParseSession(strings.TrimSpace(parts[1]))
		if err != nil || !authz.IsValid(claims.AccountType) {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxAccountType, claims.AccountType)
		c.Next()
	}
}

// CurrentUser returns the authenticated user id and account type.
func CurrentUser(c *gin.Context) (int, string, bool) {
	id, ok := c.Get(ctxUserID)
	if !ok {
		return 0, "", false
	}
	userID, ok := id.(int)
	if !ok {
		return 0, "", false
	}
	accountType := c.GetString(ctxAccountType)
	return userID, accountType, true
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
