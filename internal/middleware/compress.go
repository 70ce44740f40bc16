package middleware

import (
	"compress/gzip"
	"strings"

	"github.com/gin-gonic/gin"
)

type gzipWriter struct {
	gin.ResponseWriter
	writer *gzip.Writer
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	return g.writer.Write(data)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.writer.Write([]byte(s))
}

// CompressConfig controls response compression.
type CompressConfig struct {
	Level int
	// Blacklist paths are served uncompressed: scrape endpoints,
	// websocket upgrades, and binary downloads.
	Blacklist []string
}

func DefaultCompressConfig() CompressConfig {
	return CompressConfig{
		Level: gzip.DefaultCompression,
		Blacklist: []string{
			"/health",
			"/metrics",
			"/api/v1/realtime",
			"/api/v1/files",
			"/api/v1/admin/reports",
		},
	}
}

// Compress gzips responses for clients that accept it.
func Compress(config CompressConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, path := range config.Blacklist {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		if !strings.Contains(c.Request.Header.Get("Accept-Encoding"), "gzip") ||
			c.GetHeader("Upgrade") != "" {
			c.Next()
			return
		}

		gz, err := gzip.NewWriterLevel(c.Writer, config.Level)
		if err != nil {
			c.Next()
			return
		}

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		c.Writer = &gzipWriter{c.Writer, gz}

		defer func() {
			gz.Close()
			c.Header("Content-Length", "")
		}()

		c.Next()
	}
}
