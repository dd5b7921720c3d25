// Package postgres persists player location history using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/sotamapper/internal/config"
)

// Connection retry defaults. The daemon usually starts with the desktop
// session, often before a local database container is accepting connections.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 2 * time.Second
)

// HealthTimeout bounds each ping made by MonitorHealth.
const HealthTimeout = 5 * time.Second

// Pool is the location history connection pool.
type Pool struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	// consecutive failed health pings, owned by MonitorHealth
	failures int
}

// OpenOptions controls how Open waits for the database.
type OpenOptions struct {
	// Attempts is the number of pings tried before giving up; <= 0 uses
	// DefaultConnectAttempts.
	Attempts int
	// Backoff is the delay between attempts, doubled after each failure;
	// <= 0 uses DefaultConnectBackoff.
	Backoff time.Duration
}

// Open creates the pool and pings until the database answers, the attempts
// run out, or ctx ends.
//
// Precondition: cfg must pass DatabaseConfig.Validate; logger must be non-nil.
// Postcondition: Returns a connected Pool, or a non-nil error with every
// resource released.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger, opts OpenOptions) (*Pool, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultConnectAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultConnectBackoff
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	backoff := opts.Backoff
	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if attempt >= opts.Attempts {
			pool.Close()
			return nil, fmt.Errorf("pinging database after %d attempts: %w", attempt, err)
		}
		logger.Warn("database not ready",
			zap.String("host", cfg.Host),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, fmt.Errorf("waiting for database: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return &Pool{pool: pool, logger: logger}, nil
}

// Health checks that the database is reachable within the given timeout.
//
// Precondition: The pool must not be closed.
// Postcondition: Returns nil if the database responds within the timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

// MonitorHealth pings the database every interval until ctx ends. A failure
// is logged when it starts and recovery is logged once, so an outage does
// not flood the log.
//
// Postcondition: Returns ctx.Err().
func (p *Pool) MonitorHealth(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.observeHealth(p.Health(ctx, HealthTimeout))
		}
	}
}

func (p *Pool) observeHealth(err error) {
	switch {
	case err != nil:
		p.failures++
		if p.failures == 1 {
			p.logger.Warn("database health check failed", zap.Error(err))
		} else {
			p.logger.Debug("database still unhealthy", zap.Int("failures", p.failures), zap.Error(err))
		}
	case p.failures > 0:
		p.logger.Info("database healthy again", zap.Int("failures", p.failures))
		p.failures = 0
	}
}

// Locations returns a repository over this pool.
func (p *Pool) Locations() *LocationRepository {
	return NewLocationRepository(p.pool)
}

// Close releases all pool resources.
//
// Postcondition: The pool is no longer usable after calling Close.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool for use by repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
