package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the correlation id on both request and
	// response.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is where the id lives in the Gin context.
	RequestIDKey = "request_id"
)

// RequestID assigns every request a correlation id, honoring one already
// supplied by the client, and echoes it on the response. The structured
// logger and the error-response logger both stamp it on their events, so
// a user-reported id finds the full server-side trace of that request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// GetRequestID retrieves the request id stashed by RequestID.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
