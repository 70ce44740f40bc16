package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/pkg/httputil"
)

// Timeout caps how long a request may run. Handlers observe the
// deadline through the request context, so store and broker calls
// return early; if the handler never wrote a response the client gets
// a 504.
func Timeout(duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), duration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, httputil.Response{
				Success: false,
				Error: &httputil.Error{
					Code:    http.StatusGatewayTimeout,
					Message: "request timed out",
				},
			})
		}
	}
}
