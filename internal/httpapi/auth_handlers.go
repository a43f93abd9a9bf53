package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/auth"
	"github.com/fieldtrace/signalstudio/internal/logger"
	"github.com/fieldtrace/signalstudio/internal/models"
)

func (d *Deps) registerAuthRoutes(api *gin.RouterGroup) {
	g := api.Group("/auth")
	g.POST("/register", d.handleRegister)
	g.POST("/login", d.handleLogin)

	protected := g.Group("")
	protected.Use(d.requireAuth())
	protected.POST("/logout", d.handleLogout)
	protected.POST("/change-password", d.handleChangePassword)
	protected.GET("/me", d.handleGetMe)
	protected.PUT("/me", d.handleUpdateMe)
	protected.GET("/features", d.handleFeatures)
}

func (d *Deps) handleRegister(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	ip := c.ClientIP()
	if locked, remaining := d.Limiter.Check("register", ip); locked {
		apperr.Abort(c, apperr.RateLimited(remaining))
		return
	}

	resp, err := d.Auth.Register(c.Request.Context(), &req, ip, c.Request.UserAgent())
	if err != nil {
		d.Limiter.Record("register", ip)
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}

	d.Limiter.Reset("register", ip)
	c.JSON(http.StatusCreated, resp)
}

// handleLogin layers the sliding-window lockout limiter in front of
// auth.Manager.Login: the limiter's identity is (email, ip) so a single
// attacker can't lock out a victim's account by spraying attempts from
// many addresses, nor can a shared-NAT IP lock out everyone behind it.
func (d *Deps) handleLogin(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	ip := c.ClientIP()
	identity := req.Email + "|" + ip
	if locked, remaining := d.Limiter.Check("login", identity); locked {
		apperr.Abort(c, apperr.RateLimited(remaining))
		return
	}

	resp, err := d.Auth.Login(c.Request.Context(), req.Email, req.Password, ip, c.Request.UserAgent())
	if err != nil {
		d.Limiter.Record("login", identity)
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}

	d.Limiter.Reset("login", identity)

	// Best-effort orphan sweep of the user's file rows; never blocks or
	// fails the login itself.
	go func(userID string) {
		if _, err := d.Store.ReconcileOrphans(context.Background(), userID); err != nil {
			logger.Storage().Warn().Err(err).Str("user_id", userID).Msg("post-login orphan reconcile failed")
		}
	}(resp.User.ID)

	c.JSON(http.StatusOK, resp)
}

func (d *Deps) handleLogout(c *gin.Context) {
	token := bearerToken(c)
	if err := d.Auth.Logout(c.Request.Context(), token); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (d *Deps) handleChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	user := currentUser(c)
	resp, err := d.Auth.ChangePassword(c.Request.Context(), user.ID, &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (d *Deps) handleGetMe(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (d *Deps) handleUpdateMe(c *gin.Context) {
	var req models.ProfileUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	user := currentUser(c)
	updated, err := d.Auth.UpdateProfile(c.Request.Context(), user.ID, &req)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (d *Deps) handleFeatures(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, gin.H{"features": auth.Features(user.Role)})
}
