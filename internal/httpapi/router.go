package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/metrics"
	"github.com/fieldtrace/signalstudio/internal/middleware"
)

// maxRequestBodyBytes is the 1.5 GiB cap on the largest
// accepted request body (a multi-gigabyte source recording upload is
// rejected earlier, by the reverse proxy; this is the app-level backstop).
const maxRequestBodyBytes = int64(1536) * 1024 * 1024

// NewRouter builds the Gin engine: the full middleware chain followed by
// every route group the HTTP surface names. Exactly one Deps is built at
// startup by cmd/server and handed here.
func NewRouter(deps *Deps) *gin.Engine {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = maxRequestBodyBytes
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(apperr.Recovery())
	router.Use(apperr.Handler())
	router.Use(middleware.StructuredLogger())
	router.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	router.Use(middleware.AllowedHTTPMethods())
	router.Use(CORS(deps.CORSOrigins))

	if deps.Production {
		router.Use(middleware.SecurityHeaders())
	} else {
		router.Use(middleware.SecurityHeadersRelaxed())
	}

	// Path/query injection screening (traversal sequences, null bytes,
	// shell metacharacters) runs before any handler sees an id.
	router.Use(middleware.NewInputValidator().Middleware())

	router.Use(middleware.RequestSizeLimiter(deps.MaxBodyBytes))

	if deps.IPLimiter != nil {
		router.Use(deps.IPLimiter.Middleware())
	}

	if deps.Audit != nil {
		router.Use(middleware.NewAuditLogger(deps.Audit, false).Middleware())
	}

	// Gzip excludes the view/eda endpoints: their bodies are large arrays
	// of float64 JSON where the client usually wants it streamed raw, and
	// auth endpoints, which should never be cached or transformed.
	router.Use(middleware.GzipWithExclusions(middleware.BestSpeed, []string{
		"/api/auth/",
		"/api/view",
		"/api/eda/view",
		"/api/metrics",
	}))

	if deps.Metrics != nil {
		router.Use(metrics.Middleware(deps.Metrics))
	}

	router.GET("/health", deps.health)
	router.GET("/version", deps.version)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := router.Group("/api")
	deps.registerAuthRoutes(api)
	deps.registerAdminRoutes(api)
	deps.registerSourcesRoutes(api)
	deps.registerEDARoutes(api)
	deps.registerConvertRoutes(api)
	deps.registerConcatRoutes(api)
	deps.registerStorageRoutes(api)
	deps.registerArtifactRoutes(api)
	deps.registerMetricsRoutes(api)

	return router
}

var startedAt = time.Now()
