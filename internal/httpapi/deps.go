// Package httpapi wires every service-layer component behind
// the HTTP surface — Gin route registration, bearer-token
// auth middleware, request binding/validation, and the translation of
// apperr.AppError into the uniform {"error": "..."} response shape.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/artifacts"
	"github.com/fieldtrace/signalstudio/internal/auth"
	"github.com/fieldtrace/signalstudio/internal/cache"
	"github.com/fieldtrace/signalstudio/internal/dbx"
	"github.com/fieldtrace/signalstudio/internal/metrics"
	"github.com/fieldtrace/signalstudio/internal/middleware"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/fieldtrace/signalstudio/internal/ratelimit"
	"github.com/fieldtrace/signalstudio/internal/recording"
	"github.com/fieldtrace/signalstudio/internal/sandbox"
	"github.com/fieldtrace/signalstudio/internal/storage"
	"github.com/fieldtrace/signalstudio/internal/tasks"
	"github.com/fieldtrace/signalstudio/internal/view"
)

// Deps bundles every component a route handler may need. cmd/server builds
// exactly one of these at startup and hands it to NewRouter.
type Deps struct {
	Auth      *auth.Manager
	Limiter   *ratelimit.Limiter
	Store     *storage.Store
	Sessions  *recording.Manager
	View      *view.Engine
	Pipeline  *tasks.Pipeline
	Artifacts *artifacts.Service
	Metrics   *metrics.Collector
	Cache     *cache.Cache // nil-able: Cache.IsEnabled() guards every use
	Audit     *dbx.AuditDB // nil-able: audit logging is best-effort

	// Sandbox bounds every analysis run; zero values fall back to the
	// sandbox package defaults.
	Sandbox sandbox.Limits

	// IPLimiter is the coarse, per-IP HTTP-layer throttle that sits
	// underneath the sliding-window lockout limiter (Limiter above).
	// Distinct purpose: the lockout limiter locks out a single
	// (action, identity) pair after repeated failures; IPLimiter just caps raw request volume.
	IPLimiter *middleware.RateLimiter

	CORSOrigins          []string
	MaxBodyBytes         int64
	ViewCacheTTL         time.Duration
	MetricsRetentionDays int
	Production           bool // selects strict vs relaxed security headers

	// WorkDir holds uploaded source files awaiting conversion/concat/EDA
	// before they're moved into permanent storage or a task's input list.
	WorkDir string
}

// cacheEnabled reports whether the optional Redis layer is live.
func (d *Deps) cacheEnabled() bool {
	return d.Cache != nil && d.Cache.IsEnabled()
}

// cachedViewResponse looks up a rendered view response by its exact
// (session, indices, range, budget) key. A miss or disabled cache just
// returns nil.
func (d *Deps) cachedViewResponse(c *gin.Context, sessionID string, indices []int, t0, t1 float64, maxPoints int) *models.ViewResponse {
	if !d.cacheEnabled() || d.ViewCacheTTL <= 0 {
		return nil
	}
	var resp models.ViewResponse
	if err := d.Cache.Get(c.Request.Context(), cache.ViewKey(sessionID, indices, t0, t1, maxPoints), &resp); err != nil {
		return nil
	}
	return &resp
}

func (d *Deps) storeViewResponse(c *gin.Context, sessionID string, indices []int, t0, t1 float64, maxPoints int, resp *models.ViewResponse) {
	if !d.cacheEnabled() || d.ViewCacheTTL <= 0 {
		return
	}
	_ = d.Cache.Set(c.Request.Context(), cache.ViewKey(sessionID, indices, t0, t1, maxPoints), resp, d.ViewCacheTTL)
}

// invalidateViewCache drops every cached view for a session; called
// whenever the session's signal set or data changes (preload, computed
// variable create/update/delete, session teardown).
func (d *Deps) invalidateViewCache(c *gin.Context, sessionID string) {
	if !d.cacheEnabled() {
		return
	}
	_ = d.Cache.DeletePattern(c.Request.Context(), cache.ViewPattern(sessionID))
}

// responseCache is a generic whole-response cache for read-mostly public
// listings (default assets); a no-op when Redis is absent.
func (d *Deps) responseCache(ttl time.Duration) gin.HandlerFunc {
	if d.cacheEnabled() {
		return cache.CacheMiddleware(d.Cache, ttl)
	}
	return func(c *gin.Context) { c.Next() }
}
