package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/billing-sync-server/internal/config"
	"github.com/stacklok/billing-sync-server/internal/status"
	"github.com/stacklok/billing-sync-server/internal/sync/state"
	"github.com/stacklok/billing-sync-server/internal/sync/writer"
)

// DatabaseFactory creates PostgreSQL-backed storage components. Several
// replicas may share one database; the wake timer row records which of them
// claimed each pass.
type DatabaseFactory struct {
	config     *config.Config
	pool       *pgxpool.Pool
	instanceID string
}

var _ Factory = (*DatabaseFactory)(nil)

// Option configures the DatabaseFactory
type Option func(*DatabaseFactory)

// WithInstanceID sets the identity recorded when this process claims a wake
func WithInstanceID(id string) Option {
	return func(f *DatabaseFactory) {
		if id != "" {
			f.instanceID = id
		}
	}
}

// NewDatabaseFactory creates a new database-backed storage factory.
// It establishes a connection pool to the configured PostgreSQL database.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config, opts ...Option) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	slog.Info("Creating database-backed storage factory")

	pool, err := buildDatabaseConnectionPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	factory := &DatabaseFactory{
		config:     cfg,
		pool:       pool,
		instanceID: DefaultInstanceID(),
	}
	for _, opt := range opts {
		opt(factory)
	}

	return factory, nil
}

// DefaultInstanceID returns "<hostname>-<random suffix>"
func DefaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "billing-sync"
	}
	return host + "-" + uuid.NewString()[:8]
}

// CreateStore creates the PostgreSQL-backed pending work store and wake timer
func (d *DatabaseFactory) CreateStore(_ context.Context) (state.Store, error) {
	slog.Debug("Creating database-backed state store", "instance_id", d.instanceID)
	return state.NewDBStore(d.pool, d.config.GetShardKey(), d.instanceID), nil
}

// CreateStateWriter creates the PostgreSQL-backed billing state cache
func (d *DatabaseFactory) CreateStateWriter(_ context.Context) (writer.StateWriter, error) {
	slog.Debug("Creating database-backed state writer")
	return writer.NewDBStateWriter(d.pool)
}

// CreateStatusPersistence returns nil: replicas share the database, so
// each keeps its own pass status in memory.
func (*DatabaseFactory) CreateStatusPersistence(_ context.Context) (status.StatusPersistence, error) {
	return nil, nil
}

// Pool returns the connection pool
func (d *DatabaseFactory) Pool() *pgxpool.Pool {
	return d.pool
}

// Cleanup closes the connection pool
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}

func buildDatabaseConnectionPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = min(cfg.MaxIdleConns, poolConfig.MaxConns)
	}
	lifetime, err := cfg.GetConnMaxLifetime()
	if err != nil {
		return nil, fmt.Errorf("failed to parse connMaxLifetime: %w", err)
	}
	if lifetime > 0 {
		poolConfig.MaxConnLifetime = lifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	slog.Info("Database connection pool created successfully")
	return pool, nil
}
