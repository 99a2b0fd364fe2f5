// Package observability bootstraps process-wide OpenTelemetry tracing.
// Grounded on the teacher's internal/observability SetupOTelSDK, unchanged in
// shape — a stdout span exporter is enough for this exercise's scope; a real
// deployment would swap stdouttrace for an OTLP exporter without touching any
// caller of Tracer().
package observability

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "bot-arena"

// SetupTracing wires a stdout-exporting TracerProvider as the process-global
// default. The returned shutdown func flushes and stops the exporter; call
// it during graceful shutdown alongside the HTTP server and scheduler.
func SetupTracing(ctx context.Context) (shutdown func(context.Context) error, err error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName("bot-arena")))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return func(ctx context.Context) error {
		if err := provider.Shutdown(ctx); err != nil {
			log.Printf("[OTEL][WARN] tracer shutdown: %v", err)
			return err
		}
		return nil
	}, nil
}

// Tracer returns the package-scoped tracer every span-producing caller in
// this module uses, so all spans share one instrumentation name.
func Tracer() oteltrace.Tracer {
	return otel.Tracer(tracerName)
}
