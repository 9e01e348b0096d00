// Package ctxutil carries per-request identity and trace ids on a context,
// across HTTP handlers and into queued jobs.
package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type (
	requestDataKey struct{}
	traceDataKey   struct{}
)

// RequestData is the authenticated caller.
type RequestData struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
}

// TraceData survives the hop through the job queue, so a pair analysis can
// be correlated with the request that scheduled it.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(Default(ctx), requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	return value[*RequestData](ctx, requestDataKey{})
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(Default(ctx), traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	return value[*TraceData](ctx, traceDataKey{})
}

// LogFields returns the correlation ids on ctx as logger key/value pairs.
func LogFields(ctx context.Context) []any {
	var out []any
	if td := GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			out = append(out, "trace_id", td.TraceID)
		}
		if td.RequestID != "" {
			out = append(out, "request_id", td.RequestID)
		}
	}
	if rd := GetRequestData(ctx); rd != nil && rd.UserID != uuid.Nil {
		out = append(out, "user_id", rd.UserID.String())
	}
	return out
}

// Default substitutes context.Background for a nil ctx.
func Default(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func value[T any](ctx context.Context, key any) T {
	var zero T
	if ctx == nil {
		return zero
	}
	v, ok := ctx.Value(key).(T)
	if !ok {
		return zero
	}
	return v
}
