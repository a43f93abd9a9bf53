package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// TimeoutConfig bounds how long a request may run before it is aborted
// with 408. Paths with an excluded prefix are exempt.
type TimeoutConfig struct {
	Timeout       time.Duration
	ExcludedPaths []string
}

// DefaultTimeoutConfig allows 30 seconds per request and exempts the
// upload endpoints: a multi-gigabyte recording takes minutes to stream in
// and is bounded by the server's write/read deadlines instead. Download
// endpoints are exempt for the symmetric reason — a converted CSV of a
// large recording can take longer than 30s to leave the building.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Timeout: 30 * time.Second,
		ExcludedPaths: []string{
			"/api/eda/upload",
			"/api/convert/upload",
			"/api/convert/download/",
			"/api/concat/upload-single",
			"/api/concat/download/",
			"/api/storage/files", // multipart uploads and file downloads
		},
	}
}

// Timeout wraps each request in a deadline context and races the handler
// against it, so a stuck decoder call or a slow-loris body can't pin a
// worker forever.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range config.ExcludedPaths {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})
		go func() {
			c.Next()
			close(finished)
		}()

		select {
		case <-finished:
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
				"error": "Request timed out",
			})
		}
	}
}
