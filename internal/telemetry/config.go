package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stacklok/billing-sync-server/internal/versions"
)

const (
	// DefaultServiceName identifies the process in exported telemetry
	DefaultServiceName = "billing-sync-server"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the share of traces kept when tracing is enabled
	DefaultSampling = 0.05

	// DefaultExportInterval is how often metrics are pushed to the collector
	DefaultExportInterval = 60 * time.Second
)

// Config is the telemetry section of the server configuration
type Config struct {
	// Enabled turns on the OpenTelemetry SDK. Without it every provider is a no-op.
	Enabled bool `yaml:"enabled"`

	// ServiceName defaults to "billing-sync-server"
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion defaults to the build version
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the collector as "host:port"; the /v1/traces and /v1/metrics paths are implied
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure exports over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of traces kept, between 0 and 1. Zero means DefaultSampling.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls metric export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Prometheus also serves the metrics for scraping on /metrics
	Prometheus bool `yaml:"prometheus,omitempty"`

	// ExportInterval is the OTLP push period (e.g., "30s"). Defaults to one minute.
	ExportInterval string `yaml:"exportInterval,omitempty"`
}

// settings is a Config with every default applied
type settings struct {
	serviceName    string
	serviceVersion string
	endpoint       string
	insecure       bool

	tracing  bool
	sampling float64

	metrics        bool
	prometheus     bool
	exportInterval time.Duration
}

// resolve applies the defaults. It expects a validated config.
func (c *Config) resolve() settings {
	s := settings{
		serviceName:    DefaultServiceName,
		serviceVersion: versions.Version,
		endpoint:       DefaultEndpoint,
		sampling:       DefaultSampling,
		exportInterval: DefaultExportInterval,
	}
	if c == nil || !c.Enabled {
		return s
	}

	if c.ServiceName != "" {
		s.serviceName = c.ServiceName
	}
	if c.ServiceVersion != "" {
		s.serviceVersion = c.ServiceVersion
	}
	if c.Endpoint != "" {
		s.endpoint = c.Endpoint
	}
	s.insecure = c.Insecure

	if c.Tracing != nil && c.Tracing.Enabled {
		s.tracing = true
		if c.Tracing.Sampling != 0 {
			s.sampling = c.Tracing.Sampling
		}
	}

	if c.Metrics != nil && c.Metrics.Enabled {
		s.metrics = true
		s.prometheus = c.Metrics.Prometheus
		if d, err := time.ParseDuration(c.Metrics.ExportInterval); err == nil && d > 0 {
			s.exportInterval = d
		}
	}

	return s
}

// Validate checks an enabled configuration. A nil or disabled config is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error

	if strings.Contains(c.Endpoint, "://") {
		errs = append(errs, fmt.Errorf("endpoint must be host:port without a scheme, got %q", c.Endpoint))
	}

	if c.Tracing != nil && c.Tracing.Enabled && (c.Tracing.Sampling < 0 || c.Tracing.Sampling > 1) {
		errs = append(errs, fmt.Errorf("tracing: sampling must be between 0.0 and 1.0, got %f", c.Tracing.Sampling))
	}

	if c.Metrics != nil && c.Metrics.Enabled && c.Metrics.ExportInterval != "" {
		d, err := time.ParseDuration(c.Metrics.ExportInterval)
		if err != nil {
			errs = append(errs, fmt.Errorf("metrics: invalid exportInterval: %w", err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("metrics: exportInterval must be positive, got %s", d))
		}
	}

	return errors.Join(errs...)
}
