package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"retailpos/pkg/logger"
)

// Logger middleware logs HTTP requests with timing and status.
// It also attaches log to the request context, so engine logs go to the same sink.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		}
		if c.GetBool(keyReplayed) {
			fields = append(fields, "idempotent_replay", true)
		}

		log.WithContext(c.Request.Context()).Infow("http request", fields...)
	}
}
