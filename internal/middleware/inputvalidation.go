// Request input screening: path-traversal sequences, null bytes, and
// injection-shaped query values are rejected before any handler sees an
// id or a filter. Free-text fields that are stored and rendered back
// (file descriptions, artifact names) are additionally HTML-stripped via
// SanitizeString at the handlers that accept them.
package middleware

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

// InputValidator screens paths and query parameters and strips HTML from
// free-text fields.
type InputValidator struct {
	sanitizer *bluemonday.Policy
}

// NewInputValidator builds a validator around bluemonday's strict policy
// (strips all HTML).
func NewInputValidator() *InputValidator {
	return &InputValidator{sanitizer: bluemonday.StrictPolicy()}
}

// Middleware validates the URL path and every query parameter. Request
// bodies are not touched here: they are schema-bound and validated per
// endpoint, and analysis code or formulas in a JSON body must arrive
// byte-exact.
func (v *InputValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := validatePath(c.Request.URL.Path); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid path"})
			return
		}

		for key, values := range c.Request.URL.Query() {
			for _, value := range values {
				if err := validateQueryValue(value); err != nil {
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
						"error": fmt.Sprintf("Invalid query parameter %q", key),
					})
					return
				}
			}
		}

		c.Next()
	}
}

// SanitizeString strips HTML from a free-text field before it is stored.
func (v *InputValidator) SanitizeString(input string) string {
	return v.sanitizer.Sanitize(input)
}

var traversalPatterns = []string{
	"../", "..\\", "/..", "\\..",
	"%2e%2e", "%252e%252e", "..%2f", "..%5c",
}

// validatePath rejects traversal sequences and null bytes anywhere in
// the request path, raw or percent-encoded.
func validatePath(path string) error {
	lower := strings.ToLower(path)
	for _, pattern := range traversalPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("path traversal attempt")
		}
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("null byte in path")
	}
	return nil
}

// queryDenyPatterns covers the injection shapes that could plausibly
// reach a query-built filter or a shell: SQL keywords-with-structure,
// script URLs, and command substitution. The view endpoints' numeric
// lists and ranges pass untouched.
var queryDenyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)union\s+select`),
	regexp.MustCompile(`(?i)select\s+.*\s+from`),
	regexp.MustCompile(`(?i)insert\s+into`),
	regexp.MustCompile(`(?i)delete\s+from`),
	regexp.MustCompile(`(?i)drop\s+table`),
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile("`"),
	regexp.MustCompile(`\$\(`),
	regexp.MustCompile(`[;|]`),
}

func validateQueryValue(value string) error {
	if len(value) > 10000 {
		return fmt.Errorf("value too long")
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("null byte")
	}
	for _, re := range queryDenyPatterns {
		if re.MatchString(value) {
			return fmt.Errorf("injection pattern")
		}
	}
	return nil
}
