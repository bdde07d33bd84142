package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware recording request metrics into both
// the Prometheus exporter and the in-process collector.
func Middleware(exporter *Exporter, collector *Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())

		if exporter != nil {
			exporter.RecordHTTPRequest(method, path, status, duration)
		}
		if collector != nil {
			collector.Record("http_request_duration_ms", float64(duration.Milliseconds()), Tags{
				"method": method,
				"path":   path,
				"status": status,
			})
		}
	}
}
