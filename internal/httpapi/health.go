package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// buildVersion is overridden at link time via -ldflags, the way the
// teacher repo stamps its own binaries.
var buildVersion = "dev"

func (d *Deps) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(startedAt).String(),
	})
}

func (d *Deps) version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": buildVersion})
}
