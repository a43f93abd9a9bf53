package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fieldtrace/signalstudio/internal/apperr"
)

// registerEDARoutes wires the "lazy EDA" surface: arbitrary, explicitly
// named sessions a user uploads and tears down themselves, as opposed to
// the Sources flow's single implicit per-user session.
func (d *Deps) registerEDARoutes(api *gin.RouterGroup) {
	g := api.Group("/eda")
	g.Use(d.requireAuth())

	g.POST("/upload", d.handleEDAUpload)
	g.GET("/list-signals/:session", d.handleEDAListSignals)
	g.POST("/preload-signal/:session/:index", d.handleEDAPreloadSignal)
	g.GET("/view/:session", d.handleEDAView)
	g.GET("/session/:session", d.handleEDAGetSession)
	g.DELETE("/session/:session", d.handleEDADeleteSession)
}

// ownsSession checks a session's recorded owner against the caller,
// returning false (and writing the response) on any mismatch or missing
// session so callers can `if !ok { return }`.
func (d *Deps) ownsSession(c *gin.Context, sessionID, userID string) bool {
	info, err := d.Sessions.GetInfo(sessionID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return false
	}
	if info.OwnerID != userID {
		apperr.Abort(c, apperr.Forbidden("session does not belong to this account"))
		return false
	}
	return true
}

func (d *Deps) handleEDAUpload(c *gin.Context) {
	user := currentUser(c)

	path, ok := d.saveUpload(c, "file")
	if !ok {
		return
	}

	var dbcPath string
	if fh, err := c.FormFile("dbc"); err == nil {
		p, ok := d.saveUploadFile(c, fh)
		if !ok {
			return
		}
		dbcPath = p
	}

	sessionID := uuid.NewString()
	if err := d.Sessions.CreateSession(sessionID, user.ID, path, dbcPath); err != nil {
		apperr.Abort(c, apperr.Decode(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sessionID})
}

func (d *Deps) handleEDAListSignals(c *gin.Context) {
	sessionID, ok := requiredParam(c, "session")
	if !ok {
		return
	}
	user := currentUser(c)
	if !d.ownsSession(c, sessionID, user.ID) {
		return
	}

	signals, err := d.Sessions.ListSignals(c.Request.Context(), sessionID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, signals)
}

func (d *Deps) handleEDAPreloadSignal(c *gin.Context) {
	sessionID, ok := requiredParam(c, "session")
	if !ok {
		return
	}
	user := currentUser(c)
	if !d.ownsSession(c, sessionID, user.ID) {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		apperr.Abort(c, apperr.Validation("invalid index"))
		return
	}

	sig, err := d.Sessions.Preload(c.Request.Context(), sessionID, index)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	d.invalidateViewCache(c, sessionID)
	c.JSON(http.StatusOK, sig)
}

func (d *Deps) handleEDAView(c *gin.Context) {
	sessionID, ok := requiredParam(c, "session")
	if !ok {
		return
	}
	user := currentUser(c)
	if !d.ownsSession(c, sessionID, user.ID) {
		return
	}

	indices, t0, t1, maxPoints, ok := parseViewQuery(c)
	if !ok {
		return
	}

	if cached := d.cachedViewResponse(c, sessionID, indices, t0, t1, maxPoints); cached != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	resp, err := d.View.Render(c.Request.Context(), sessionID, indices, t0, t1, maxPoints)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	d.storeViewResponse(c, sessionID, indices, t0, t1, maxPoints, resp)
	c.JSON(http.StatusOK, resp)
}

func (d *Deps) handleEDAGetSession(c *gin.Context) {
	sessionID, ok := requiredParam(c, "session")
	if !ok {
		return
	}
	user := currentUser(c)
	if !d.ownsSession(c, sessionID, user.ID) {
		return
	}

	info, err := d.Sessions.GetInfo(sessionID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, info)
}

func (d *Deps) handleEDADeleteSession(c *gin.Context) {
	sessionID, ok := requiredParam(c, "session")
	if !ok {
		return
	}
	user := currentUser(c)
	if !d.ownsSession(c, sessionID, user.ID) {
		return
	}

	if err := d.Sessions.DeleteSession(sessionID); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	d.invalidateViewCache(c, sessionID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
