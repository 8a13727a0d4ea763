package logger

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware returns a gin middleware that logs each request with latency
// and status.
func Middleware(log *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("request completed",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}
