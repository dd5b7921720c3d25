// Package testutil provides test helpers for container-backed storage tests.
package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/sotamapper/internal/config"
	"github.com/cory-johannsen/sotamapper/internal/storage/postgres"
	"github.com/cory-johannsen/sotamapper/migrations"
)

const (
	postgresImage = "postgres:16-alpine"
	postgresPort  = "5432/tcp"
	// Credentials double as user, password and database name.
	postgresCreds = "sotamapper_test"
)

// PostgresContainer is a throwaway location history database.
type PostgresContainer struct {
	Pool   *postgres.Pool
	Config config.DatabaseConfig
}

// NewPostgresContainer starts PostgreSQL in a container and opens a Pool on
// it. Both are released by t.Cleanup. The test is skipped in -short mode or
// when no container provider is reachable.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("container tests are skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	start := time.Now()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{postgresPort},
			Env: map[string]string{
				"POSTGRES_USER":     postgresCreds,
				"POSTGRES_PASSWORD": postgresCreds,
				"POSTGRES_DB":       postgresCreds,
			},
			// The server logs readiness twice: once for the init run, once
			// for the real start.
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort(postgresPort),
			).WithDeadline(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "starting %s", postgresImage)

	cfg := databaseConfig(ctx, t, ctr)
	pool, err := postgres.Open(ctx, cfg, zaptest.NewLogger(t), postgres.OpenOptions{Attempts: 3, Backoff: 500 * time.Millisecond})
	require.NoError(t, err, "opening pool on %s:%d", cfg.Host, cfg.Port)
	t.Cleanup(pool.Close)

	t.Logf("postgres ready at %s:%d [%s]", cfg.Host, cfg.Port, time.Since(start))
	return &PostgresContainer{Pool: pool, Config: cfg}
}

func databaseConfig(ctx context.Context, t *testing.T, ctr testcontainers.Container) config.DatabaseConfig {
	t.Helper()
	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, postgresPort)
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Enabled:         true,
		Host:            host,
		Port:            port.Int(),
		User:            postgresCreds,
		Password:        postgresCreds,
		Name:            postgresCreds,
		SSLMode:         "disable",
		MaxConns:        2,
		MinConns:        0,
		MaxConnLifetime: time.Minute,
		WriteTimeout:    time.Second,
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// ApplyMigrations runs every embedded migration up with golang-migrate, the
// same path cmd/migrate takes.
//
// Postcondition: The player_locations table exists in the test database.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	m, err := migrations.New(pc.DSN())
	require.NoError(t, err)
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err, "migrating up")
	}
	version, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty, "migration %d left dirty", version)
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return pc.Config.DSN()
}
