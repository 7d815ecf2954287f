// Package otel provides OpenTelemetry tracer provider initialization and management.
package otel

import (
	"context"
	"fmt"
	"time"

	"github.com/mrzor/ctftrace/internal/config"
	"github.com/sirupsen/logrus"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const exportTimeout = 10 * time.Second

// InitProvider builds a tracer provider exporting over OTLP/HTTP.
//
// The HTTP client honors HTTP_PROXY, HTTPS_PROXY and NO_PROXY through the
// net/http default transport. Nothing is sent until the first batch is
// flushed, so an unreachable collector surfaces on ShutdownProvider.
// A valid traceID pins every root span to that trace.
func InitProvider(ctx context.Context, cfg *config.OTELConfig, sessionID string, traceID trace.TraceID, log logrus.FieldLogger) (*sdktrace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	endpoint := cfg.GetEndpoint()
	log.WithFields(logrus.Fields{
		"service":  cfg.ServiceName,
		"endpoint": endpoint,
		"insecure": cfg.Insecure,
	}).Debug("Configuring OTLP/HTTP exporter")

	res, err := newResource(ctx, cfg, sessionID)
	if err != nil {
		return nil, err
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithTimeout(exportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	}
	if traceID.IsValid() {
		log.WithField("trace_id", traceID.String()).Debug("Using fixed trace ID")
		providerOpts = append(providerOpts, sdktrace.WithIDGenerator(&fixedTraceIDGenerator{traceID: traceID}))
	}
	return sdktrace.NewTracerProvider(providerOpts...), nil
}

func newResource(ctx context.Context, cfg *config.OTELConfig, sessionID string) (*resource.Resource, error) {
	resourceAttrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("service.instance.id", sessionID),
		),
	}
	if customAttrs := cfg.ParseResourceAttributes(); len(customAttrs) > 0 {
		resourceAttrs = append(resourceAttrs, resource.WithAttributes(customAttrs...))
	}

	res, err := resource.New(ctx, resourceAttrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// ShutdownProvider flushes remaining spans and stops the provider.
func ShutdownProvider(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}
