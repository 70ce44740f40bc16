package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/pkg/logger"
)

// RequestLogger logs one line per request. Bodies are never logged;
// they carry patient data.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	zl := log.WithComponent("http").Zerolog()

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		event := zl.Info()
		switch {
		case status >= 500:
			event = zl.Error()
		case status >= 400:
			event = zl.Warn()
		}

		event.
			Str("request_id", c.GetString(ContextRequestID)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("size", c.Writer.Size()).
			Msg("request")
	}
}
