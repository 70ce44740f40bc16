package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/pkg/httputil"
)

// SizeLimitConfig caps request body sizes. Upload paths get their own,
// larger cap.
type SizeLimitConfig struct {
	MaxBodyBytes   int64
	MaxUploadBytes int64
	UploadPrefixes []string
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodyBytes:   1 << 20,  // 1MB
		MaxUploadBytes: 10 << 20, // 10MB
	}
}

// SizeLimit rejects oversized requests up front and wraps the body so
// chunked requests cannot sidestep the cap.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := config.MaxBodyBytes
		for _, prefix := range config.UploadPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				limit = config.MaxUploadBytes
				break
			}
		}

		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.Response{
				Success: false,
				Error: &httputil.Error{
					Code:    http.StatusRequestEntityTooLarge,
					Message: "request body too large",
				},
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
