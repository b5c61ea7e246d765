package middleware

import (
	"strconv"
	"time"

	"github.com/eaglebank/registry/shared/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics instruments HTTP request counts and latency per route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), start)
	}
}
