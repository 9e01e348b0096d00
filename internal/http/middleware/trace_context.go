package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/nearby-backend/internal/pkg/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext stamps every request with a trace id and a request id
// and echoes both back. An active span's trace id wins over the header, so
// logs and spans line up whenever tracing is on.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			TraceID:   spanTraceID(c),
			RequestID: headerOrNew(c, headerRequestID),
		}
		if td.TraceID == "" {
			td.TraceID = headerOrNew(c, headerTraceID)
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Header(headerTraceID, td.TraceID)
		c.Header(headerRequestID, td.RequestID)
		c.Next()
	}
}

func spanTraceID(c *gin.Context) string {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func headerOrNew(c *gin.Context, name string) string {
	if v := strings.TrimSpace(c.GetHeader(name)); v != "" && len(v) <= 128 {
		return v
	}
	return uuid.NewString()
}
