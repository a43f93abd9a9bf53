// Audit trail: every API request is recorded to the audit_log table —
// who, what, when, from where, outcome — so account takeovers, quota
// disputes, and deleted-file questions can be answered after the fact.
// Writes are asynchronous and best-effort; a slow or absent audit store
// never blocks or fails a user request.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/dbx"
	"github.com/fieldtrace/signalstudio/internal/logger"
)

// AuditEvent is one recorded request.
type AuditEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	UserID      string                 `json:"user_id,omitempty"`
	Username    string                 `json:"username,omitempty"`
	Action      string                 `json:"action"`
	Resource    string                 `json:"resource"`
	StatusCode  int                    `json:"status_code"`
	IPAddress   string                 `json:"ip_address"`
	UserAgent   string                 `json:"user_agent"`
	Duration    int64                  `json:"duration_ms"`
	RequestBody map[string]interface{} `json:"request_body,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// AuditLogger records requests to a dbx.AuditDB. A nil store disables
// recording entirely.
type AuditLogger struct {
	auditDB         *dbx.AuditDB
	logRequestBody  bool
	sensitiveFields []string
}

// NewAuditLogger builds a logger. logBodies additionally captures JSON
// request bodies (≤10 KiB, credential fields redacted) — useful in
// debugging, off in production where bodies may hold formulas and
// analysis code the operator has no need to retain.
func NewAuditLogger(auditDB *dbx.AuditDB, logBodies bool) *AuditLogger {
	return &AuditLogger{
		auditDB:         auditDB,
		logRequestBody:  logBodies,
		sensitiveFields: []string{"password", "oldPassword", "newPassword", "token", "secret", "apiKey", "api_key"},
	}
}

// redact replaces credential-named fields with a marker, recursing into
// nested objects. Arrays are not descended into; no audited endpoint
// carries credentials inside an array.
func (a *AuditLogger) redact(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		sensitive := false
		for _, field := range a.sensitiveFields {
			if key == field {
				sensitive = true
				break
			}
		}
		switch {
		case sensitive:
			out[key] = "[REDACTED]"
		default:
			if nested, ok := value.(map[string]interface{}); ok {
				out[key] = a.redact(nested)
			} else {
				out[key] = value
			}
		}
	}
	return out
}

// logEvent persists one event; called on its own goroutine. Failures are
// logged on the security channel and otherwise dropped — auditing must
// not be able to take the API down.
func (a *AuditLogger) logEvent(event *AuditEvent) {
	if a.auditDB == nil {
		return
	}

	details, _ := json.Marshal(map[string]interface{}{
		"status_code":  event.StatusCode,
		"duration_ms":  event.Duration,
		"user_agent":   event.UserAgent,
		"request_body": event.RequestBody,
		"error":        event.Error,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.auditDB.Insert(ctx, event.UserID, event.Action, event.Resource, "",
		string(details), event.Timestamp, event.IPAddress); err != nil {
		logger.Security().Warn().Err(err).Msg("failed to persist audit event")
	}
}

// Middleware captures each request and hands the event to a background
// writer after the response is sent. The user id is read after the rest of
// the chain has run, so it is present whenever requireAuth ran for the
// route; unauthenticated requests are recorded with an empty user.
func (a *AuditLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var requestBody map[string]interface{}
		if a.logRequestBody && c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			if len(bodyBytes) > 0 && len(bodyBytes) < 10240 {
				if json.Unmarshal(bodyBytes, &requestBody) == nil {
					requestBody = a.redact(requestBody)
				}
			}
		}

		c.Next()

		event := &AuditEvent{
			Timestamp:   startTime,
			UserID:      contextString(c, "userID"),
			Username:    contextString(c, "username"),
			Action:      c.Request.Method,
			Resource:    c.Request.URL.Path,
			StatusCode:  c.Writer.Status(),
			IPAddress:   c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
			Duration:    time.Since(startTime).Milliseconds(),
			RequestBody: requestBody,
		}
		if len(c.Errors) > 0 {
			event.Error = c.Errors.String()
		}

		go a.logEvent(event)
	}
}

func contextString(c *gin.Context, key string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
