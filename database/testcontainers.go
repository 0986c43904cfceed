package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	testPostgresImage    = "postgres:16-alpine"
	testPostgresDatabase = "billing_sync"
	testPostgresUser     = "billing_sync"
	testPostgresPassword = "billing_sync"
)

// quietLogger drops the container lifecycle chatter from test output
type quietLogger struct{}

func (quietLogger) Printf(string, ...any) {}

var _ tclog.Logger = quietLogger{}

type testPostgresOptions struct {
	migrate bool
}

// TestPostgresOption configures NewTestPostgres
type TestPostgresOption func(*testPostgresOptions)

// WithoutSchema leaves the database empty, for tests that drive migrations themselves
func WithoutSchema() TestPostgresOption {
	return func(o *testPostgresOptions) {
		o.migrate = false
	}
}

// NewTestPostgres runs a throwaway Postgres container and returns a pool to
// it with the billing sync schema applied. The pool and the container are
// released when the test ends. Tests are skipped in -short mode.
func NewTestPostgres(t testing.TB, opts ...TestPostgresOption) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("Postgres container tests are skipped in short mode")
	}

	o := &testPostgresOptions{migrate: true}
	for _, opt := range opts {
		opt(o)
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, testPostgresImage,
		postgres.WithDatabase(testPostgresDatabase),
		postgres.WithUsername(testPostgresUser),
		postgres.WithPassword(testPostgresPassword),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(quietLogger{}),
	)
	tc.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start Postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	if o.migrate {
		require.NoError(t, MigrateUp(ctx, dsn), "failed to apply migrations")
	}

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}
