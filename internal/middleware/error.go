package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cleanly/booking-api/pkg/errors"
	"github.com/cleanly/booking-api/pkg/httputil"
	"github.com/cleanly/booking-api/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error. The
// cause of an internal error is logged and never returned to the client.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := errors.As(c.Errors.Last().Err)
		reqLog := log.FromContext(c.Request.Context())
		if appErr.StatusCode() >= http.StatusInternalServerError {
			reqLog.Error(appErr, "Request error",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"client_ip", c.ClientIP(),
			)
		} else {
			reqLog.Debug("Request rejected", "code", string(appErr.Code), "message", appErr.Message)
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.StatusCode(), httputil.ErrorBody(appErr))
	}
}
