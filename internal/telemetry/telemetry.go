package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry owns the OpenTelemetry providers of the process.
// Disabled signals are served by no-op providers.
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	promRegistry   *prometheus.Registry
	enabled        bool

	shutdowns []func(context.Context) error
}

// Option configures New
type Option func(*telemetryConfig)

type telemetryConfig struct {
	config   *Config
	shardKey string
}

// WithTelemetryConfig sets the telemetry section of the server configuration
func WithTelemetryConfig(cfg *Config) Option {
	return func(tc *telemetryConfig) {
		tc.config = cfg
	}
}

// WithShardKey adds the shard to the exported resource
func WithShardKey(shardKey string) Option {
	return func(tc *telemetryConfig) {
		tc.shardKey = shardKey
	}
}

// New sets up tracing and metrics. The enabled SDK providers are also
// installed as the global providers together with the W3C propagator.
// The caller must call Shutdown to flush pending exports.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	tc := &telemetryConfig{}
	for _, opt := range opts {
		opt(tc)
	}

	t := &Telemetry{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}

	if tc.config == nil || !tc.config.Enabled {
		slog.Debug("Telemetry disabled")
		return t, nil
	}
	if err := tc.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	s := tc.config.resolve()
	t.enabled = true
	slog.Info("Initializing telemetry",
		"service_name", s.serviceName,
		"service_version", s.serviceVersion,
		"shard", tc.shardKey,
		"tracing", s.tracing,
		"metrics", s.metrics)

	if !s.tracing && !s.metrics {
		return t, nil
	}

	res, err := newResource(ctx, s, tc.shardKey)
	if err != nil {
		return nil, err
	}

	if s.tracing {
		tp, err := newTracerProvider(ctx, s, res)
		if err != nil {
			return nil, err
		}
		t.tracerProvider = tp
		t.shutdowns = append(t.shutdowns, tp.Shutdown)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	if s.metrics {
		var reg prometheus.Registerer
		if s.prometheus {
			t.promRegistry = prometheus.NewRegistry()
			reg = t.promRegistry
		}
		mp, err := newMeterProvider(ctx, s, res, reg)
		if err != nil {
			// Stop the tracer exporter that is already running
			_ = t.Shutdown(ctx)
			return nil, err
		}
		t.meterProvider = mp
		t.shutdowns = append(t.shutdowns, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}

	if s.insecure {
		slog.Warn("Telemetry is exported over plain HTTP")
	}

	return t, nil
}

// Enabled reports whether the telemetry section turned the SDK on
func (t *Telemetry) Enabled() bool {
	return t.enabled
}

// TracerProvider returns the tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// MetricsHandler returns the Prometheus scrape handler, or nil when
// metrics.prometheus is off.
func (t *Telemetry) MetricsHandler() http.Handler {
	if t.promRegistry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.promRegistry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the SDK providers, meters first.
// Later calls do nothing.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if len(t.shutdowns) == 0 {
		return nil
	}
	slog.Info("Shutting down telemetry")

	var errs []error
	for _, shutdown := range slices.Backward(t.shutdowns) {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdowns = nil

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to shut down telemetry: %w", err)
	}
	return nil
}
