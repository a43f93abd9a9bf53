package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestSizeLimiter caps the request body at maxSize bytes. The router
// passes the recording-upload ceiling (1.5 GiB), sized for multi-GB MF4
// files arriving through /api/eda/upload and the convert/concat upload
// endpoints; everything else is far below it. Content-Length is checked
// first, then the body is wrapped in MaxBytesReader so a lying or absent
// Content-Length still can't stream past the cap.
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body exceeds the maximum allowed size",
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
