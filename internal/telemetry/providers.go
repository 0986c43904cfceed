package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// AttrShardKey tags the resource with the shard served by the process
const AttrShardKey = attribute.Key("billing_sync.shard")

func newResource(ctx context.Context, s settings, shardKey string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(s.serviceName),
		semconv.ServiceVersion(s.serviceVersion),
	}
	if shardKey != "" {
		attrs = append(attrs, AttrShardKey.String(shardKey))
	}

	// resource.New rather than resource.Merge with resource.Default, whose schema URL may differ
	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// newTracerProvider exports spans over OTLP/HTTP through a batch processor
func newTracerProvider(ctx context.Context, s settings, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.endpoint)}
	if s.insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.sampling))),
	)

	slog.Info("Tracing initialized",
		"endpoint", s.endpoint,
		"sampling_ratio", s.sampling,
		"insecure", s.insecure)
	return tp, nil
}

// newMeterProvider pushes metrics over OTLP/HTTP and, when reg is not nil,
// also registers a Prometheus pull reader with it
func newMeterProvider(
	ctx context.Context,
	s settings,
	res *resource.Resource,
	reg prometheus.Registerer,
) (*sdkmetric.MeterProvider, error) {
	exporterOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(s.endpoint)}
	if s.insecure {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(s.exportInterval))),
	}

	if reg != nil {
		promExporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(promExporter))
		slog.Info("Prometheus metrics exporter enabled")
	}

	slog.Info("Metrics initialized",
		"endpoint", s.endpoint,
		"export_interval", s.exportInterval,
		"insecure", s.insecure)
	return sdkmetric.NewMeterProvider(opts...), nil
}
