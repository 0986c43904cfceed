// Package config provides configuration loading and management for the billing sync server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/billing-sync-server/internal/telemetry"
)

// StorageType names the backend that holds pending work, the wake timer and
// the billing state cache.
type StorageType string

const (
	// StorageTypeDatabase stores everything in PostgreSQL
	StorageTypeDatabase StorageType = "database"

	// StorageTypeSQLite stores everything in a single SQLite file
	StorageTypeSQLite StorageType = "sqlite"

	// StorageTypeFile stores everything as JSON documents in a directory
	StorageTypeFile StorageType = "file"
)

const (
	// EnvPrefix is the prefix of every environment variable read by the server
	EnvPrefix = "BILLING_SYNC"

	// DefaultShardKey is used when no shard key is configured
	DefaultShardKey = "default"

	// DefaultConcurrency is the number of workers used by a batch pass
	DefaultConcurrency = 5

	// DefaultPollInterval is how long an idle scheduler waits before re-reading the wake timer
	DefaultPollInterval = 30 * time.Second

	// dataDirName is the per-user data directory under $XDG_DATA_HOME
	dataDirName = "billing-sync"

	// sqliteFileName is the database file inside the data directory
	sqliteFileName = "billing-sync.db"

	// DefaultUpstreamTimeout bounds a single upstream request
	DefaultUpstreamTimeout = 30 * time.Second

	// DefaultUpstreamMaxRetries is the number of retries for a transient upstream failure
	DefaultUpstreamMaxRetries = 3

	// databasePasswordEnvVar is consulted when no password file is configured
	databasePasswordEnvVar = "BILLING_SYNC_DATABASE_PASSWORD"

	// upstreamAPIKeyEnvVar is consulted when no API key file is configured
	upstreamAPIKeyEnvVar = "BILLING_SYNC_UPSTREAM_API_KEY"

	// webhookSecretEnvVar is consulted when no webhook secret file is configured
	webhookSecretEnvVar = "BILLING_SYNC_WEBHOOK_SECRET"

	// DefaultWebhookTolerance bounds the age of a signed webhook timestamp
	DefaultWebhookTolerance = 5 * time.Minute
)

// ConfigurationError reports an invalid or missing configuration value.
// It is fatal at startup.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; this also cleans the path.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// ShardKey scopes the wake timer and pending work of this synchronizer.
	// Defaults to "default" if not specified
	ShardKey  string            `yaml:"shardKey,omitempty"`
	Sync      SyncConfig        `yaml:"sync"`
	Storage   *StorageConfig    `yaml:"storage,omitempty"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Upstream  *UpstreamConfig   `yaml:"upstream,omitempty"`
	Ingress   *IngressConfig    `yaml:"ingress,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// SyncConfig controls batching and scheduling.
type SyncConfig struct {
	// BatchSize is the maximum number of entities synced in one pass. Required.
	BatchSize *int `yaml:"batchSize"`

	// SyncIntervalSeconds is the delay between the first notification and the pass that handles it. Required.
	SyncIntervalSeconds *int `yaml:"syncIntervalSeconds"`

	// Concurrency is the number of entities synced in parallel within a pass
	Concurrency int `yaml:"concurrency,omitempty"`

	// PollInterval is how often an idle scheduler re-reads the wake timer (e.g., "30s")
	PollInterval string `yaml:"pollInterval,omitempty"`

	// AlertAfterFailures escalates the log level once an entity has failed this many times.
	// Zero disables the escalation.
	AlertAfterFailures int64 `yaml:"alertAfterFailures,omitempty"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Type   StorageType          `yaml:"type"`
	File   *FileStorageConfig   `yaml:"file,omitempty"`
	SQLite *SQLiteStorageConfig `yaml:"sqlite,omitempty"`
}

// FileStorageConfig defines file storage settings
type FileStorageConfig struct {
	// Dir is the directory holding the JSON documents
	Dir string `yaml:"dir,omitempty"`
}

// SQLiteStorageConfig defines SQLite storage settings
type SQLiteStorageConfig struct {
	// Path is the SQLite database file
	Path string `yaml:"path,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// UpstreamConfig defines how the billing provider is reached
type UpstreamConfig struct {
	// Endpoint is the base URL of the billing provider API
	Endpoint string `yaml:"endpoint"`

	// APIKeyFile is the path to a file containing the bearer API key
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`

	// Timeout bounds a single request (e.g., "30s")
	Timeout string `yaml:"timeout,omitempty"`

	// MaxRetries is the number of retries for transport errors, 429 and 5xx responses
	MaxRetries *int `yaml:"maxRetries,omitempty"`
}

// IngressConfig defines optional event sources beyond the HTTP API
type IngressConfig struct {
	Kafka   *KafkaConfig   `yaml:"kafka,omitempty"`
	Webhook *WebhookConfig `yaml:"webhook,omitempty"`
}

// WebhookConfig enables signature verification on the billing webhook endpoint
type WebhookConfig struct {
	// SecretFile is the path to a file containing the shared signing secret
	SecretFile string `yaml:"secretFile,omitempty"`

	// ToleranceSeconds is the maximum accepted age of a signature timestamp.
	// Defaults to 300.
	ToleranceSeconds int `yaml:"toleranceSeconds,omitempty"`
}

// KafkaConfig defines the Kafka topic carrying billing provider events
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"groupId"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from BILLING_SYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	return readSecret(d.PasswordFile, databasePasswordEnvVar, "database password")
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	), nil
}

// GetConnMaxLifetime parses ConnMaxLifetime, returning zero when unset
func (d *DatabaseConfig) GetConnMaxLifetime() (time.Duration, error) {
	if d.ConnMaxLifetime == "" {
		return 0, nil
	}
	return time.ParseDuration(d.ConnMaxLifetime)
}

// GetAPIKey returns the upstream API key, read from APIKeyFile or the
// BILLING_SYNC_UPSTREAM_API_KEY environment variable.
func (u *UpstreamConfig) GetAPIKey() (string, error) {
	return readSecret(u.APIKeyFile, upstreamAPIKeyEnvVar, "upstream API key")
}

// GetSecret returns the webhook signing secret, read from SecretFile or the
// BILLING_SYNC_WEBHOOK_SECRET environment variable.
func (w *WebhookConfig) GetSecret() (string, error) {
	return readSecret(w.SecretFile, webhookSecretEnvVar, "webhook secret")
}

// GetTolerance returns the accepted signature age
func (w *WebhookConfig) GetTolerance() time.Duration {
	if w.ToleranceSeconds <= 0 {
		return DefaultWebhookTolerance
	}
	return time.Duration(w.ToleranceSeconds) * time.Second
}

// GetTimeout returns the per-request timeout
func (u *UpstreamConfig) GetTimeout() time.Duration {
	if u == nil || u.Timeout == "" {
		return DefaultUpstreamTimeout
	}
	d, err := time.ParseDuration(u.Timeout)
	if err != nil {
		return DefaultUpstreamTimeout
	}
	return d
}

// GetMaxRetries returns the retry budget for transient failures
func (u *UpstreamConfig) GetMaxRetries() int {
	if u == nil || u.MaxRetries == nil {
		return DefaultUpstreamMaxRetries
	}
	return *u.MaxRetries
}

func readSecret(path, envVar, what string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return "", fmt.Errorf("failed to read %s from file %s: %w", what, path, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	return "", fmt.Errorf("no %s configured: set the file option or %s environment variable", what, envVar)
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetShardKey returns the shard key, using "default" if not specified
func (c *Config) GetShardKey() string {
	if c.ShardKey == "" {
		return DefaultShardKey
	}
	return c.ShardKey
}

// GetStorageType returns the configured storage type.
// Database storage is implied when a database section is present and no type is set.
func (c *Config) GetStorageType() StorageType {
	if c.Storage != nil && c.Storage.Type != "" {
		return c.Storage.Type
	}
	if c.Database != nil {
		return StorageTypeDatabase
	}
	return StorageTypeFile
}

// GetFileStorageDir returns the directory used by file storage
func (c *Config) GetFileStorageDir() string {
	if c.Storage != nil && c.Storage.File != nil && c.Storage.File.Dir != "" {
		return c.Storage.File.Dir
	}
	return DefaultDataDir()
}

// GetSQLitePath returns the SQLite database file
func (c *Config) GetSQLitePath() string {
	if c.Storage != nil && c.Storage.SQLite != nil && c.Storage.SQLite.Path != "" {
		return c.Storage.SQLite.Path
	}
	return filepath.Join(DefaultDataDir(), sqliteFileName)
}

// DefaultDataDir is where file and SQLite storage live when no location is
// configured, e.g. ~/.local/share/billing-sync
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, dataDirName)
}

// GetBatchSize returns the validated batch size
func (c *Config) GetBatchSize() int {
	if c.Sync.BatchSize == nil {
		return 0
	}
	return *c.Sync.BatchSize
}

// GetSyncInterval returns the validated sync interval
func (c *Config) GetSyncInterval() time.Duration {
	if c.Sync.SyncIntervalSeconds == nil {
		return 0
	}
	return time.Duration(*c.Sync.SyncIntervalSeconds) * time.Second
}

// GetConcurrency returns the worker count of a batch pass
func (c *Config) GetConcurrency() int {
	if c.Sync.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return c.Sync.Concurrency
}

// GetPollInterval returns the idle poll interval of the scheduler
func (c *Config) GetPollInterval() time.Duration {
	if c.Sync.PollInterval == "" {
		return DefaultPollInterval
	}
	d, err := time.ParseDuration(c.Sync.PollInterval)
	if err != nil || d <= 0 {
		return DefaultPollInterval
	}
	return d
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.Sync.validate(); err != nil {
		return err
	}

	switch c.GetStorageType() {
	case StorageTypeDatabase:
		if c.Database == nil {
			return &ConfigurationError{Field: "database", Message: "required when storage type is database"}
		}
	case StorageTypeSQLite, StorageTypeFile:
	default:
		return &ConfigurationError{
			Field:   "storage.type",
			Message: fmt.Sprintf("unsupported storage type %q", c.Storage.Type),
		}
	}

	if c.Upstream != nil {
		if err := c.Upstream.validate(); err != nil {
			return err
		}
	}

	if c.Ingress != nil && c.Ingress.Kafka != nil {
		if err := c.Ingress.Kafka.validate(); err != nil {
			return err
		}
	}

	if c.Ingress != nil && c.Ingress.Webhook != nil && c.Ingress.Webhook.ToleranceSeconds < 0 {
		return &ConfigurationError{Field: "ingress.webhook.toleranceSeconds", Message: "must not be negative"}
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func (s *SyncConfig) validate() error {
	if s.BatchSize == nil {
		return &ConfigurationError{Field: "sync.batchSize", Message: "is required"}
	}
	if *s.BatchSize <= 0 {
		return &ConfigurationError{Field: "sync.batchSize", Message: "must be greater than zero"}
	}
	if s.SyncIntervalSeconds == nil {
		return &ConfigurationError{Field: "sync.syncIntervalSeconds", Message: "is required"}
	}
	if *s.SyncIntervalSeconds <= 0 {
		return &ConfigurationError{Field: "sync.syncIntervalSeconds", Message: "must be greater than zero"}
	}
	if s.Concurrency < 0 {
		return &ConfigurationError{Field: "sync.concurrency", Message: "must not be negative"}
	}
	if s.AlertAfterFailures < 0 {
		return &ConfigurationError{Field: "sync.alertAfterFailures", Message: "must not be negative"}
	}
	if s.PollInterval != "" {
		if _, err := time.ParseDuration(s.PollInterval); err != nil {
			return &ConfigurationError{Field: "sync.pollInterval", Message: fmt.Sprintf("invalid duration: %v", err)}
		}
	}
	return nil
}

func (u *UpstreamConfig) validate() error {
	if u.Endpoint == "" {
		return &ConfigurationError{Field: "upstream.endpoint", Message: "is required"}
	}
	parsed, err := url.Parse(u.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &ConfigurationError{Field: "upstream.endpoint", Message: fmt.Sprintf("invalid URL %q", u.Endpoint)}
	}
	if u.Timeout != "" {
		if _, err := time.ParseDuration(u.Timeout); err != nil {
			return &ConfigurationError{Field: "upstream.timeout", Message: fmt.Sprintf("invalid duration: %v", err)}
		}
	}
	if u.MaxRetries != nil && *u.MaxRetries < 0 {
		return &ConfigurationError{Field: "upstream.maxRetries", Message: "must not be negative"}
	}
	return nil
}

func (k *KafkaConfig) validate() error {
	var errs []error
	if len(k.Brokers) == 0 {
		errs = append(errs, &ConfigurationError{Field: "ingress.kafka.brokers", Message: "at least one broker is required"})
	}
	if k.Topic == "" {
		errs = append(errs, &ConfigurationError{Field: "ingress.kafka.topic", Message: "is required"})
	}
	if k.GroupID == "" {
		errs = append(errs, &ConfigurationError{Field: "ingress.kafka.groupId", Message: "is required"})
	}
	return errors.Join(errs...)
}
