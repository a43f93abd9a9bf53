package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AllowedHTTPMethods rejects any request whose method is outside the set
// the API actually serves. TRACE/TRACK (response reflection) and CONNECT
// (tunneling) in particular are refused before routing.
func AllowedHTTPMethods() gin.HandlerFunc {
	allowed := map[string]bool{
		http.MethodGet:     true,
		http.MethodPost:    true,
		http.MethodPut:     true,
		http.MethodPatch:   true,
		http.MethodDelete:  true,
		http.MethodOptions: true, // CORS preflight
		http.MethodHead:    true,
	}

	return func(c *gin.Context) {
		if !allowed[c.Request.Method] {
			c.Header("Allow", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{
				"error": "Method not allowed",
			})
			return
		}
		c.Next()
	}
}
