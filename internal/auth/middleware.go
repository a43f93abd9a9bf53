package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/models"
)

// Context keys populated by RequireAuth/OptionalAuth.
const (
	ctxUserID = "userID"
	ctxUser   = "authUser"
)

// RequireAuth validates the bearer token on every request and rejects
// the request if it is missing, malformed, or doesn't resolve to an
// active session.
func RequireAuth(manager *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			apperr.Abort(c, apperr.Unauthorized("authorization header required"))
			return
		}

		user, err := manager.ValidateToken(c.Request.Context(), token)
		if err != nil {
			appErr, ok := err.(*apperr.AppError)
			if !ok {
				appErr = apperr.Internal(err)
			}
			apperr.Abort(c, appErr)
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxUser, user)
		c.Next()
	}
}

// OptionalAuth validates the bearer token if present but never rejects a
// request for lacking one; handlers branch on GetUser's second return.
func OptionalAuth(manager *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		user, err := manager.ValidateToken(c.Request.Context(), token)
		if err == nil {
			c.Set(ctxUserID, user.ID)
			c.Set(ctxUser, user)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireRole restricts a route to a single role; must follow RequireAuth.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok {
			apperr.Abort(c, apperr.Unauthorized("authentication required"))
			return
		}
		if user.Role != role {
			apperr.Abort(c, apperr.Forbidden("insufficient permissions"))
			return
		}
		c.Next()
	}
}

// GetUserID extracts the authenticated user's ID from the Gin context.
func GetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// GetUser extracts the authenticated user from the Gin context.
func GetUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ctxUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(c *gin.Context) bool {
	user, ok := GetUser(c)
	return ok && user.Role == models.RoleAdmin
}
