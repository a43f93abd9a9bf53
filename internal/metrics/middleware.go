package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// httpRequestsTotal and httpRequestDuration feed the live Prometheus
// /metrics endpoint, a separate surface from the JSON daily rollup;
// promauto registers them against prometheus.DefaultRegisterer.
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalstudio_http_requests_total",
			Help: "Total HTTP requests, labeled by method, route, and status.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signalstudio_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Middleware records every request into both the Collector's
// anonymized daily rollup and the live Prometheus counters.
func Middleware(c *Collector) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		elapsed := time.Since(start)

		path := ctx.FullPath()
		if path == "" {
			path = ctx.Request.URL.Path
		}
		status := ctx.Writer.Status()

		c.RecordRequest(ctx.ClientIP(), path, ctx.Request.Method, float64(elapsed.Milliseconds()), status)
		httpRequestsTotal.WithLabelValues(ctx.Request.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(ctx.Request.Method, path).Observe(elapsed.Seconds())
	}
}

// Handler exposes the process's Prometheus registry in text exposition
// format, separate from the JSON reporting endpoints.
func Handler() http.Handler {
	return promhttp.Handler()
}
