package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/stacklok/billing-sync-server/internal/api"
	v1 "github.com/stacklok/billing-sync-server/internal/api/v1"
	"github.com/stacklok/billing-sync-server/internal/auth"
	"github.com/stacklok/billing-sync-server/internal/app/storage"
	"github.com/stacklok/billing-sync-server/internal/config"
	"github.com/stacklok/billing-sync-server/internal/httpclient"
	"github.com/stacklok/billing-sync-server/internal/ingress/kafka"
	"github.com/stacklok/billing-sync-server/internal/otel"
	"github.com/stacklok/billing-sync-server/internal/status"
	pkgsync "github.com/stacklok/billing-sync-server/internal/sync"
	"github.com/stacklok/billing-sync-server/internal/sync/coordinator"
	"github.com/stacklok/billing-sync-server/internal/telemetry"
	"github.com/stacklok/billing-sync-server/internal/upstream"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// BillingSyncAppOptions is a function that configures the app builder
type BillingSyncAppOptions func(*billingSyncAppConfig) error

// billingSyncAppConfig collects the inputs of NewBillingSyncApp.
// Every component override is optional and exists mostly for tests.
type billingSyncAppConfig struct {
	config *config.Config

	storageFactory storage.Factory
	syncClient     pkgsync.SyncClient
	messageReader  kafka.MessageReader
	clock          clock.WithTicker
	instanceID     string

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...BillingSyncAppOptions) (*billingSyncAppConfig, error) {
	cfg := &billingSyncAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
		clock:          clock.RealClock{},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewBillingSyncApp wires the storage backend, the sync pipeline, the
// optional Kafka consumer and the HTTP server from the given options.
func NewBillingSyncApp(
	ctx context.Context,
	opts ...BillingSyncAppOptions,
) (*BillingSyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.instanceID == "" {
		cfg.instanceID = storage.DefaultInstanceID()
	}

	// Single decision point for the storage backend
	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config, storage.WithInstanceID(cfg.instanceID))
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	components, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	components.KafkaConsumer = buildKafkaConsumer(cfg, components.Ingestor)

	httpServer, err := buildHTTPServer(ctx, cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	// From here on the app owns the factory
	cleanupNeeded = false

	cancelFunc := func() {
		cfg.storageFactory.Cleanup()
		cancel()
	}

	return &BillingSyncApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) BillingSyncAppOptions {
	return func(cfg *billingSyncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) BillingSyncAppOptions {
	return func(cfg *billingSyncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) BillingSyncAppOptions {
	return func(cfg *billingSyncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) BillingSyncAppOptions {
	return func(cfg *billingSyncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithSyncClient replaces the upstream-backed sync client
func WithSyncClient(c pkgsync.SyncClient) BillingSyncAppOptions {
	return func(cfg *billingSyncAppConfig) error {
		cfg.syncClient = c
		return nil
	}
}

// WithMessageReader replaces the Kafka reader built from ingress.kafka
func WithMessageReader(r kafka.MessageReader) BillingSyncAppOptions {
	return func(cfg *billingSyncAppConfig) error {
		cfg.messageReader = r
		return nil
	}
}

// WithClock sets the clock shared by the ingestor, processor and coordinator
func WithClock(clk clock.WithTicker) BillingSyncAppOptions {
	return func(cfg *billingSyncAppConfig) error {
		if clk == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		cfg.clock = clk
		return nil
	}
}

// WithInstanceID sets the identity of this replica
func WithInstanceID(id string) BillingSyncAppOptions {
	return func(cfg *billingSyncAppConfig) error {
		cfg.instanceID = id
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP and sync metrics
func WithMeterProvider(mp metric.MeterProvider) BillingSyncAppOptions {
	return func(cfg *billingSyncAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for HTTP and sync spans
func WithTracerProvider(tp trace.TracerProvider) BillingSyncAppOptions {
	return func(cfg *billingSyncAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler mounts h on /metrics
func WithMetricsHandler(h http.Handler) BillingSyncAppOptions {
	return func(cfg *billingSyncAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildSyncComponents builds the store, ingestor, batch processor and coordinator
func buildSyncComponents(
	ctx context.Context,
	b *billingSyncAppConfig,
) (*AppComponents, error) {
	slog.Info("Initializing sync components", "shard_key", b.config.GetShardKey())

	store, err := b.storageFactory.CreateStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}

	persistence, err := b.storageFactory.CreateStatusPersistence(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create status persistence: %w", err)
	}
	tracker, err := status.NewTracker(ctx, b.config.GetShardKey(), persistence)
	if err != nil {
		return nil, fmt.Errorf("failed to load pass status: %w", err)
	}

	if b.syncClient == nil {
		b.syncClient, err = buildSyncClient(ctx, b)
		if err != nil {
			return nil, err
		}
	}

	syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}
	ingestMetrics, err := telemetry.NewIngestMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
	}
	tracer := otel.Tracer(b.tracerProvider)

	ingestor := pkgsync.NewIngestor(store, store, b.config.GetSyncInterval(),
		pkgsync.WithIngestClock(b.clock),
		pkgsync.WithIngestMetrics(ingestMetrics),
		pkgsync.WithIngestTracer(tracer),
		pkgsync.WithIngestShardKey(b.config.GetShardKey()),
	)

	processor, err := pkgsync.NewBatchProcessor(store, store, b.syncClient,
		b.config.GetBatchSize(), b.config.GetSyncInterval(),
		pkgsync.WithConcurrency(b.config.GetConcurrency()),
		pkgsync.WithAlertAfterFailures(b.config.Sync.AlertAfterFailures),
		pkgsync.WithProcessorClock(b.clock),
		pkgsync.WithSyncMetrics(syncMetrics),
		pkgsync.WithProcessorTracer(tracer),
		pkgsync.WithProcessorShardKey(b.config.GetShardKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch processor: %w", err)
	}

	syncCoordinator := coordinator.New(store, processor,
		coordinator.WithClock(b.clock),
		coordinator.WithNudges(ingestor.Nudges()),
		coordinator.WithPollInterval(b.config.GetPollInterval()),
		coordinator.WithInstanceID(b.instanceID),
		coordinator.WithStatusTracker(tracker),
	)

	slog.Info("Sync components initialized successfully",
		"batch_size", b.config.GetBatchSize(),
		"sync_interval", b.config.GetSyncInterval(),
		"concurrency", b.config.GetConcurrency())

	return &AppComponents{
		SyncCoordinator: syncCoordinator,
		Ingestor:        ingestor,
		Processor:       processor,
		Store:           store,
		StatusTracker:   tracker,
	}, nil
}

// buildSyncClient builds the client that fetches from the billing provider
// and writes the local billing state cache
func buildSyncClient(ctx context.Context, b *billingSyncAppConfig) (pkgsync.SyncClient, error) {
	upstreamCfg := b.config.Upstream
	if upstreamCfg == nil {
		return nil, fmt.Errorf("upstream configuration is required")
	}

	apiKey, err := upstreamCfg.GetAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream API key: %w", err)
	}

	stateWriter, err := b.storageFactory.CreateStateWriter(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create state writer: %w", err)
	}

	httpClient := httpclient.NewDefaultClient(upstreamCfg.GetTimeout(), httpclient.WithBearerToken(apiKey))
	fetcher := upstream.NewClient(upstreamCfg.Endpoint, httpClient,
		upstream.WithMaxRetries(upstreamCfg.GetMaxRetries()))

	slog.Info("Upstream client configured",
		"endpoint", upstreamCfg.Endpoint,
		"timeout", upstreamCfg.GetTimeout(),
		"max_retries", upstreamCfg.GetMaxRetries())

	return pkgsync.NewSyncClient(fetcher, stateWriter, b.clock), nil
}

// buildKafkaConsumer returns nil when no Kafka ingress is configured
func buildKafkaConsumer(b *billingSyncAppConfig, notifier pkgsync.Notifier) *kafka.Consumer {
	reader := b.messageReader
	if reader == nil {
		if b.config.Ingress == nil || b.config.Ingress.Kafka == nil {
			return nil
		}
		reader = kafka.NewReader(b.config.Ingress.Kafka)
		slog.Info("Kafka ingress enabled",
			"brokers", b.config.Ingress.Kafka.Brokers,
			"topic", b.config.Ingress.Kafka.Topic,
			"group_id", b.config.Ingress.Kafka.GroupID)
	}
	return kafka.NewConsumer(reader, notifier)
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *billingSyncAppConfig,
	components *AppComponents,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	if b.tracerProvider != nil {
		b.middlewares = append([]func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)},
			b.middlewares...)
		slog.Info("HTTP tracing middleware enabled")
	}

	// Metrics go first so that every request is counted
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
			slog.Info("HTTP metrics middleware enabled")
		}
	}

	var webhookConfig *config.WebhookConfig
	if b.config.Ingress != nil {
		webhookConfig = b.config.Ingress.Webhook
	}
	webhookAuth, err := auth.NewWebhookMiddleware(webhookConfig, b.clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook middleware: %w", err)
	}

	store := components.Store
	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithRouteOptions(
			v1.WithStatusProvider(components.StatusTracker),
			v1.WithShardKey(b.config.GetShardKey()),
			v1.WithWebhookMiddleware(webhookAuth),
		),
		api.WithReadinessCheck(func(ctx context.Context) error {
			_, err := store.Depth(ctx)
			return err
		}),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}

	router := api.NewServer(components.Ingestor, store, store, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
