package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/pkg/logger"
)

// Recovery turns panics into 500 responses instead of dropped
// connections.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	panicLog := log.WithComponent("http")

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				panicLog.Zerolog().Error().
					Interface("panic", err).
					Str("stack", string(debug.Stack())).
					Str("request_id", c.GetString(ContextRequestID)).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    http.StatusInternalServerError,
						"message": "internal server error",
					},
				})
			}
		}()
		c.Next()
	}
}
