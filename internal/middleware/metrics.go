package middleware

import (
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/platform/metrics"
	"github.com/gin-gonic/gin"
)

// HTTPMetrics records request count and latency per matched route.
func HTTPMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
