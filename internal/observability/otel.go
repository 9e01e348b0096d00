package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

const TracerName = "github.com/yungbote/nearby-backend"

type OtelConfig struct {
	Enabled     bool
	ServiceName string
	Environment string
	Version     string
	// Endpoint selects the OTLP/HTTP exporter. Without it, development
	// builds print spans to stdout and other environments only sample.
	Endpoint    string
	Headers     map[string]string
	Insecure    bool
	SampleRatio float64
}

func noopShutdown(context.Context) error { return nil }

// InitOTel installs the global tracer provider and W3C propagators. It
// returns the provider's shutdown; a disabled config changes nothing.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	if !cfg.Enabled {
		return noopShutdown
	}
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "nearby-backend"
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(name),
		semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	))
	if err != nil {
		log.Warn("OTel resource incomplete", "error", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	}
	exporter, err := traceExporter(ctx, cfg)
	switch {
	case err != nil:
		log.Warn("OTel exporter unavailable; spans will not leave the process", "error", err)
	case exporter != nil:
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	log.Info("OTel tracing initialized", "service", name, "endpoint", cfg.Endpoint)
	return tp.Shutdown
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

func traceExporter(ctx context.Context, cfg OtelConfig) (sdktrace.SpanExporter, error) {
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Environment), "development") {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return nil, errors.New("no OTLP endpoint configured")
}

func clampRatio(f float64) float64 {
	return min(max(f, 0), 1)
}
