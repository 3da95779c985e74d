package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery turns panics into a generic 500; the stack only goes to the log.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				LoggerFrom(c).WithField("panic", rec).WithField("stack", string(debug.Stack())).Error("[http] panic recovered")
				if !c.Writer.Written() {
					abort(c, http.StatusInternalServerError, "Internal server error")
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
