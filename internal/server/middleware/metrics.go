package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/looplj/todohub/internal/metrics"
)

// WithMetrics records the count and latency of every routed request.
func WithMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.RecordRequest(c.Request.Context(), c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
