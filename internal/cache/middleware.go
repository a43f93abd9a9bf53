package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// bodyCapture tees the response body so a successful render can be
// stored after it has been sent.
type bodyCapture struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// cachedResponse is the stored form of a whole HTTP response.
type cachedResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// CacheMiddleware caches whole GET responses keyed by request URI. The
// router applies it only to the default-asset listing, which every user
// sees identically and which changes only at deploy time — per-user or
// per-session data goes through the keyed view cache instead, where it
// can be invalidated precisely.
func CacheMiddleware(cache *Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || !cache.IsEnabled() {
			c.Next()
			return
		}

		key := responseKey(c.Request.URL.RequestURI())

		var cached cachedResponse
		if err := cache.Get(c.Request.Context(), key, &cached); err == nil {
			for k, v := range cached.Headers {
				c.Header(k, v)
			}
			c.Header("X-Cache", "HIT")
			c.Data(cached.StatusCode, "application/json", []byte(cached.Body))
			c.Abort()
			return
		}

		writer := &bodyCapture{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer
		c.Header("X-Cache", "MISS")

		c.Next()

		status := writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		headers := make(map[string]string, len(writer.Header()))
		for k := range writer.Header() {
			headers[k] = writer.Header().Get(k)
		}
		entry := cachedResponse{StatusCode: status, Headers: headers, Body: writer.body.String()}

		// Store off the request goroutine, on a fresh context: the
		// request's own context is canceled the moment the response is
		// written.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = cache.Set(ctx, key, entry, ttl)
		}()
	}
}

func responseKey(uri string) string {
	hash := sha256.Sum256([]byte(uri))
	return "response:" + hex.EncodeToString(hash[:])
}
