package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/models"
)

// registerSourcesRoutes wires the "demo recording" surface: one implicit
// active session per user, keyed by the user's own id, reusing the
// session manager rather than standing up a second session-id scheme
// alongside Lazy EDA's.
func (d *Deps) registerSourcesRoutes(api *gin.RouterGroup) {
	g := api.Group("")
	g.Use(d.requireAuth())

	g.GET("/sources", d.handleListSources)
	g.POST("/source/:id", d.handleActivateSource)
	g.GET("/info", d.handleSourceInfo)
	g.GET("/view", d.handleSourceView)
}

func (d *Deps) handleListSources(c *gin.Context) {
	user := currentUser(c)
	files, err := d.Store.List(c.Request.Context(), user.ID, models.CategoryMF4, true)
	if err != nil {
		apperr.Abort(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, files)
}

func (d *Deps) handleActivateSource(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}
	user := currentUser(c)

	path, _, err := d.Store.GetPath(c.Request.Context(), id, user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}

	var dbcPath string
	if dbcID := c.Query("dbc"); dbcID != "" {
		if !validID(dbcID) {
			apperr.Abort(c, apperr.Validation("invalid dbc"))
			return
		}
		p, _, err := d.Store.GetPath(c.Request.Context(), dbcID, user.ID)
		if err != nil {
			apperr.Abort(c, err.(*apperr.AppError))
			return
		}
		dbcPath = p
	}

	if err := d.Sessions.CreateSession(user.ID, user.ID, path, dbcPath); err != nil {
		apperr.Abort(c, apperr.Decode(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (d *Deps) handleSourceInfo(c *gin.Context) {
	user := currentUser(c)
	if _, err := d.Sessions.ListSignals(c.Request.Context(), user.ID); err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	info, err := d.Sessions.GetInfo(user.ID)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	c.JSON(http.StatusOK, info)
}

func (d *Deps) handleSourceView(c *gin.Context) {
	user := currentUser(c)
	indices, t0, t1, maxPoints, ok := parseViewQuery(c)
	if !ok {
		return
	}

	if cached := d.cachedViewResponse(c, user.ID, indices, t0, t1, maxPoints); cached != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	resp, err := d.View.Render(c.Request.Context(), user.ID, indices, t0, t1, maxPoints)
	if err != nil {
		apperr.Abort(c, err.(*apperr.AppError))
		return
	}
	d.storeViewResponse(c, user.ID, indices, t0, t1, maxPoints, resp)
	c.JSON(http.StatusOK, resp)
}

// parseViewQuery parses the ?signals=1,2,3&start=…&end=…&max_points=…
// query shape shared by both the Sources and Lazy EDA view endpoints.
func parseViewQuery(c *gin.Context) (indices []int, t0, t1 float64, maxPoints int, ok bool) {
	raw := c.Query("signals")
	if raw == "" {
		apperr.Abort(c, apperr.Validation("signals is required"))
		return nil, 0, 0, 0, false
	}
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			apperr.Abort(c, apperr.Validation("signals must be a comma-separated list of integers"))
			return nil, 0, 0, 0, false
		}
		indices = append(indices, n)
	}

	var err error
	t0, err = strconv.ParseFloat(c.Query("start"), 64)
	if err != nil {
		apperr.Abort(c, apperr.Validation("start must be a number"))
		return nil, 0, 0, 0, false
	}
	t1, err = strconv.ParseFloat(c.Query("end"), 64)
	if err != nil {
		apperr.Abort(c, apperr.Validation("end must be a number"))
		return nil, 0, 0, 0, false
	}

	maxPoints = 2000
	if raw := c.Query("max_points"); raw != "" {
		maxPoints, err = strconv.Atoi(raw)
		if err != nil {
			apperr.Abort(c, apperr.Validation("max_points must be an integer"))
			return nil, 0, 0, 0, false
		}
	}

	return indices, t0, t1, maxPoints, true
}
