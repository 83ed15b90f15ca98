package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cleanly/booking-api/pkg/logger"
)

// Logger attaches a request-scoped logger to the request context and logs
// every request once it completes. Bodies are never logged.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		reqLog := log.WithFields(map[string]interface{}{
			"request_id": c.GetString(ContextRequestID),
		})
		c.Request = c.Request.WithContext(reqLog.IntoContext(c.Request.Context()))

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"ip", c.ClientIP(),
			"status", status,
			"duration", time.Since(start),
			"user_agent", c.Request.UserAgent(),
		}

		switch {
		case status >= 500:
			reqLog.Warn("Server error", fields...)
		case status >= 400:
			reqLog.Info("Client error", fields...)
		default:
			reqLog.Info("Request processed", fields...)
		}
	}
}
