package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/models"
)

func (d *Deps) registerAdminRoutes(api *gin.RouterGroup) {
	g := api.Group("/admin")
	g.Use(d.requireAuth(), d.requireAdmin())

	g.GET("/users", d.handleListUsers)
	g.GET("/users/:id", d.handleGetUser)
	g.PUT("/users/:id", d.handleUpdateUser)
	g.DELETE("/users/:id", d.handleDeactivateUser)
	g.POST("/sessions/cleanup", d.handleSessionsCleanup)
}

func (d *Deps) handleListUsers(c *gin.Context) {
	users, err := d.Auth.ListUsers(c.Request.Context())
	if err != nil {
		apperr.Abort(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, users)
}

func (d *Deps) handleGetUser(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user, err := d.Auth.GetUser(c.Request.Context(), id)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, user)
}

func (d *Deps) handleUpdateUser(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := d.Auth.UpdateUser(c.Request.Context(), id, &req)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, user)
}

// handleDeactivateUser is a soft delete: it flips the account inactive
// and force-expires its sessions rather than removing the row, since
// sessions and user_quotas cascade off users.id and stored_files rows
// reference the user id.
func (d *Deps) handleDeactivateUser(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	if err := d.Auth.DeactivateUser(c.Request.Context(), id); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	if err := d.Auth.ForceExpireSessions(c.Request.Context(), id); err != nil {
		apperr.Abort(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (d *Deps) handleSessionsCleanup(c *gin.Context) {
	purged, err := d.Auth.PurgeExpiredSessions(c.Request.Context())
	if err != nil {
		apperr.Abort(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": purged})
}
