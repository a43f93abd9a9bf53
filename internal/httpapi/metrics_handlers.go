package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/apperr"
)

// registerMetricsRoutes wires the metrics reporting surface. The health probe
// is public; the usage reports expose aggregate (hashed) user activity
// and are admin-only.
func (d *Deps) registerMetricsRoutes(api *gin.RouterGroup) {
	g := api.Group("/metrics")
	g.GET("/health", d.handleMetricsHealth)

	admin := g.Group("")
	admin.Use(d.requireAuth(), d.requireAdmin())
	admin.GET("/current", d.handleMetricsCurrent)
	admin.GET("/daily", d.handleMetricsDaily)
	admin.GET("/daily/:date", d.handleMetricsDaily)
	admin.GET("/weekly", d.handleMetricsWeekly)
	admin.POST("/cleanup", d.handleMetricsCleanup)
}

func (d *Deps) handleMetricsHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(startedAt).String(),
	})
}

func (d *Deps) handleMetricsCurrent(c *gin.Context) {
	if d.Metrics == nil {
		apperr.Abort(c, apperr.NotFound("metrics"))
		return
	}
	c.JSON(http.StatusOK, d.Metrics.CurrentStats())
}

// handleMetricsDaily serves one day's rollup; the date defaults to today
// and must be YYYY-MM-DD otherwise.
func (d *Deps) handleMetricsDaily(c *gin.Context) {
	if d.Metrics == nil {
		apperr.Abort(c, apperr.NotFound("metrics"))
		return
	}
	date := c.Param("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		apperr.Abort(c, apperr.Validation("date must be YYYY-MM-DD"))
		return
	}
	c.JSON(http.StatusOK, d.Metrics.DailyReport(date))
}

func (d *Deps) handleMetricsWeekly(c *gin.Context) {
	if d.Metrics == nil {
		apperr.Abort(c, apperr.NotFound("metrics"))
		return
	}
	c.JSON(http.StatusOK, d.Metrics.WeeklySummary(time.Now()))
}

func (d *Deps) handleMetricsCleanup(c *gin.Context) {
	if d.Metrics == nil {
		apperr.Abort(c, apperr.NotFound("metrics"))
		return
	}
	d.Metrics.CleanupOldData(d.MetricsRetentionDays)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
