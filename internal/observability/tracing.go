package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracingConfig selects the OTLP collector.
type TracingConfig struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
}

// SetupTracing installs a global tracer provider exporting over OTLP/gRPC. With
// no endpoint configured it is a no-op; the returned shutdown is always safe to call.
func SetupTracing(ctx context.Context, cfg TracingConfig, logger *slog.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if cfg.Endpoint == "" {
		return noop
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		logger.Warn("otel exporter", slog.Any("error", err))
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		logger.Warn("otel resource", slog.Any("error", err))
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return provider.Shutdown
}
