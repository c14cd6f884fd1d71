package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TracingOpts configures the tracer provider.
type TracingOpts struct {
	ServiceName string
	Version     string
	SampleRatio float64
	Out         io.Writer // span exporter destination
}

// SetupTracing installs a global tracer provider exporting spans to opts.Out
// and returns its shutdown func, which flushes pending spans.
func SetupTracing(ctx context.Context, log *logger.Logger, opts TracingOpts) (func(context.Context) error, error) {
	if log == nil {
		log = logger.Nop()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "partline"
	}
	ratio := opts.SampleRatio
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.Version),
	))
	if err != nil {
		log.Warn("otel resource init failed (continuing)", "error", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(opts.Out))
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("otel tracing initialized", "service", opts.ServiceName, "sample_ratio", ratio)
	return tp.Shutdown, nil
}

// TraceMiddleware starts a server span per request.
func TraceMiddleware(service string) gin.HandlerFunc {
	return otelgin.Middleware(service)
}
