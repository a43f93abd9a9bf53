// Security headers for every response: HSTS, nosniff, frame denial, a
// nonce-based CSP, referrer and permissions policies. The strict variant
// is for production; the relaxed one keeps local development (hot reload,
// dev tools, plain HTTP) workable.
package middleware

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/gin-gonic/gin"
)

// scriptCDNs is the small set of origins the frontend loads its plotting
// and UI libraries from; nothing else may serve script to the app.
const scriptCDNs = "https://cdn.plot.ly https://cdn.jsdelivr.net"

// generateNonce returns 128 bits of base64 entropy for the per-request
// CSP nonce. An error leaves the caller on a no-nonce CSP, which blocks
// every inline script instead of just the unnonced ones.
func generateNonce() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}

// SecurityHeaders is the production header set: strict HSTS, DENY
// framing, and a nonce-based CSP allowing self plus the script CDNs the
// frontend needs. The nonce is stored in the context under "csp_nonce"
// for any template that renders inline script.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce, err := generateNonce()
		if err != nil {
			nonce = ""
		}
		c.Set("csp_nonce", nonce)

		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")

		scriptSrc := "'self' " + scriptCDNs
		if nonce != "" {
			scriptSrc += " 'nonce-" + nonce + "'"
		}
		styleSrc := "'self'"
		if nonce != "" {
			styleSrc += " 'nonce-" + nonce + "'"
		}
		c.Header("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src "+scriptSrc+"; "+
				"style-src "+styleSrc+"; "+
				"img-src 'self' data:; "+
				"font-src 'self' data:; "+
				"connect-src 'self'; "+
				"frame-ancestors 'none'; "+
				"base-uri 'self'; "+
				"form-action 'self'; "+
				"upgrade-insecure-requests; "+
				"block-all-mixed-content")

		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy",
			"geolocation=(), microphone=(), camera=(), payment=(), usb=()")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Header("X-Download-Options", "noopen")

		// Signal views, task status, and storage listings are all
		// per-user and change between polls; only the two unauthenticated
		// probes are cacheable.
		if c.Request.URL.Path != "/health" && c.Request.URL.Path != "/version" {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
			c.Header("Pragma", "no-cache")
		}

		c.Header("Server", "")

		c.Next()
	}
}

// SecurityHeadersRelaxed is the development header set: same
// hygiene headers, but the CSP admits unsafe-inline/unsafe-eval (hot
// reload needs eval) and SAMEORIGIN framing, and connect-src is open so
// the dev frontend can hit a differently-addressed backend.
func SecurityHeadersRelaxed() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "SAMEORIGIN")
		c.Header("X-XSS-Protection", "1; mode=block")

		c.Header("Content-Security-Policy",
			"default-src 'self' 'unsafe-inline' 'unsafe-eval' "+scriptCDNs+"; "+
				"img-src 'self' data: https:; "+
				"connect-src 'self' ws: wss: http: https:")

		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Header("X-Download-Options", "noopen")

		c.Next()
	}
}
