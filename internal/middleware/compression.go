package middleware

import (
	"compress/gzip"
	"strings"

	"github.com/gin-gonic/gin"
)

// BestSpeed is re-exported so callers configure the level without
// importing compress/gzip themselves. Level 1 is the right tradeoff for
// view responses: they are large arrays of float JSON that compress well
// even at the fastest setting, and the decode side is a browser.
const BestSpeed = gzip.BestSpeed

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

// GzipWithExclusions compresses responses for clients that accept gzip,
// skipping the given path prefixes. The router excludes the auth
// endpoints (token material should not meet a compression oracle), the
// view endpoints (/api/view, /api/eda/view) and /api/metrics.
func GzipWithExclusions(level int, excludePaths []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, path := range excludePaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		if !strings.Contains(c.Request.Header.Get("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		gz, err := gzip.NewWriterLevel(c.Writer, level)
		if err != nil {
			// An invalid level is a programming error; pass through
			// uncompressed rather than failing the request.
			c.Next()
			return
		}
		defer gz.Close()

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")

		c.Writer = &gzipWriter{ResponseWriter: c.Writer, writer: gz}
		c.Next()
		gz.Flush()
	}
}
