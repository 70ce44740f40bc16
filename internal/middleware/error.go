package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/pkg/httputil"
	"github.com/carepoint/portal-api/pkg/logger"
)

// ErrorHandler is the safety net for handlers that attach errors with
// c.Error instead of responding themselves. Every attached error is
// logged; the last one is translated into the standard envelope if no
// response was written yet.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	errLog := log.WithComponent("http")

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			errLog.Error(e.Err, "request error",
				"request_id", c.GetString(ContextRequestID),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
		}

		if !c.Writer.Written() {
			httputil.RespondWithError(c, c.Errors.Last().Err)
		}
	}
}
