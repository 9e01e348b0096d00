package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nearby-backend/internal/observability"
	"github.com/yungbote/nearby-backend/internal/pkg/ctxutil"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

// Observe logs each request and records its count and latency under the
// route template, never the raw path, so metric cardinality stays bounded.
func Observe(log *logger.Logger, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPIRequest(c.Request.Method, route, strconv.Itoa(status), elapsed)

		if log == nil {
			return
		}
		fields := append([]any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		}, ctxutil.LogFields(c.Request.Context())...)
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Debug("HTTP request", fields...)
		}
	}
}
