package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"veriboard/internal/logger"
)

const (
	correlationHeader = "X-Correlation-ID"
	ctxCorrelationID  = "correlation_id"
	ctxLogger         = "logger"
)

// CorrelationID makes sure every request carries an id and echoes it back.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(correlationHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ctxCorrelationID, id)
		c.Header(correlationHeader, id)
		c.Next()
	}
}

// RequestLogger stores a request-scoped entry on the context and logs the outcome.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		entry := logger.Log.WithFields(logrus.Fields{
			"correlation_id": c.GetString(ctxCorrelationID),
			"method":         c.Request.Method,
			"path":           path,
		})
		c.Set(ctxLogger, entry)

		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if userID, _, ok := CurrentUser(c); ok {
			fields["user_id"] = userID
		}
		entry = entry.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("[http] request completed")
		case status >= 400:
			entry.Warn("[http] request completed")
		default:
			entry.Info("[http] request completed")
		}
	}
}

// LoggerFrom returns the request-scoped entry, or the process logger outside a request.
func LoggerFrom(c *gin.Context) *logrus.Entry {
	if v, ok := c.Get(ctxLogger); ok {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(logger.Log)
}
