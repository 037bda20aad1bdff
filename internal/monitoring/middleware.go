package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"

	"log-onboarding-engine/internal/logging"
)

// MetricsMiddleware creates a middleware that collects HTTP metrics
func MetricsMiddleware(collector *MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collector.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// LoggingMiddleware logs every request through the performance logger
func LoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	perf := logging.NewPerformanceLogger(logger)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		perf.LogHTTPRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start), int64(c.Writer.Size()))
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics and records them
func RecoveryMiddleware(collector *MetricsCollector, logger *logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		collector.RecordHTTPRequest(c.Request.Method, c.FullPath(), 500, 0)
		logger.WithField("panic", recovered).WithField("path", c.Request.URL.Path).Error("Panic recovered", nil)

		c.AbortWithStatusJSON(500, gin.H{
			"error":   "INTERNAL_ERROR",
			"message": "internal server error",
		})
	})
}
