package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headerProbe(t *testing.T, mw gin.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw)
	router.GET(path, func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSecurityHeaders_StrictSet(t *testing.T) {
	w := headerProbe(t, SecurityHeaders(), "/probe")

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "includeSubDomains")
	assert.Contains(t, w.Header().Get("Referrer-Policy"), "strict-origin")

	csp := w.Header().Get("Content-Security-Policy")
	require.NotEmpty(t, csp)
	assert.Contains(t, csp, "default-src 'self'")
	assert.Contains(t, csp, "frame-ancestors 'none'")
	assert.Contains(t, csp, "cdn.plot.ly")

	pp := w.Header().Get("Permissions-Policy")
	assert.Contains(t, pp, "geolocation=()")
	assert.Contains(t, pp, "microphone=()")
	assert.Contains(t, pp, "camera=()")
}

func TestSecurityHeaders_RelaxedSet(t *testing.T) {
	w := headerProbe(t, SecurityHeadersRelaxed(), "/probe")

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "'unsafe-eval'")
}

func TestSecurityHeaders_NoncePerRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SecurityHeaders())

	var nonces []string
	router.GET("/probe", func(c *gin.Context) {
		v, ok := c.Get("csp_nonce")
		require.True(t, ok)
		nonces = append(nonces, v.(string))
		c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "nonce-")
	}

	require.Len(t, nonces, 10)
	seen := map[string]bool{}
	for _, n := range nonces {
		assert.NotEmpty(t, n)
		assert.False(t, seen[n], "nonce reused: %s", n)
		seen[n] = true
	}
}

func TestSecurityHeaders_CacheControl(t *testing.T) {
	w := headerProbe(t, SecurityHeaders(), "/api/storage/info")
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")

	w = headerProbe(t, SecurityHeaders(), "/health")
	assert.Empty(t, w.Header().Get("Cache-Control"))
}
