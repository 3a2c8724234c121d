// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/transport"
)

// ContextKeyPublishableKey is the gin context key holding the accepted key.
const ContextKeyPublishableKey = "publishableKey"

// PublishableKeyMiddleware rejects requests without an X-Zori-PT header. When
// expected is non-empty the header must match it.
func PublishableKeyMiddleware(expected string, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(transport.HeaderPublishableKey)
		if key == "" {
			key = c.Query("key") // Fallback for EventSource, which cannot set headers
		}

		if key == "" {
			logger.Collector().Warn("Missing publishable key", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": transport.HeaderPublishableKey + " header is required"})
			return
		}
		if expected != "" && key != expected {
			logger.Collector().Warn("Unknown publishable key", "path", c.Request.URL.Path, "key", logging.SanitizeID(key))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unknown publishable key"})
			return
		}

		c.Set(ContextKeyPublishableKey, key)
		c.Next()
	}
}
