package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fieldtrace/signalstudio/internal/logger"
)

// StructuredLogger emits one zerolog event per request on the HTTP
// component logger: request id, method, path, status, duration, client
// ip, and — when auth has run — the user id. Level follows the status
// code (info/warn/error for 2xx/4xx/5xx). The health and version probes
// are skipped; they fire every few seconds and say nothing.
func StructuredLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/version" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		var evt *zerolog.Event
		switch {
		case status >= 500:
			evt = logger.HTTP().Error()
		case status >= 400:
			evt = logger.HTTP().Warn()
		default:
			evt = logger.HTTP().Info()
		}

		evt = evt.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP())

		if raw := c.Request.URL.RawQuery; raw != "" {
			evt = evt.Str("query", raw)
		}
		if userID, ok := c.Get("userID"); ok {
			evt = evt.Interface("user_id", userID)
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}

		evt.Msg("request")
	}
}
