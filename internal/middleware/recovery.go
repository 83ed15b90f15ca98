package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/cleanly/booking-api/pkg/errors"
	"github.com/cleanly/booking-api/pkg/httputil"
	"github.com/cleanly/booking-api/pkg/logger"
)

// Recovery handles panics and logs them appropriately
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.FromContext(c.Request.Context()).Error(fmt.Errorf("panic: %v", rec), "Request panic recovered",
					"stack", string(debug.Stack()),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"client_ip", c.ClientIP(),
				)
				httputil.AbortWithError(c, errors.Internal(nil))
			}
		}()
		c.Next()
	}
}
