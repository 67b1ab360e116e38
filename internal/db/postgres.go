package db

import (
	"context"
	"time"

	"github.com/adcp/salesagent/internal/resilience"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PostgresOptions tunes the pool for one process.
type PostgresOptions struct {
	DSN      string
	MaxConns int32
	// ApplicationName shows up in pg_stat_activity, e.g. "salesagent-api".
	ApplicationName string
	// PingAttempts bounds the startup ping while the database comes up.
	PingAttempts int
}

func postgresConfig(opts PostgresOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	cfg.MaxConns = 20
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = 2
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	if opts.ApplicationName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
	}
	return cfg, nil
}

func NewPostgresPool(ctx context.Context, opts PostgresOptions, log *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := postgresConfig(opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	if err := pingUntilReady(ctx, pool, opts.PingAttempts, log); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	log.Info("postgres pool created",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
		zap.String("application_name", opts.ApplicationName),
		zap.Int32("max_conns", cfg.MaxConns),
	)
	return pool, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// pingUntilReady retries refused or timed out pings, which is what a
// database that is still starting looks like.
func pingUntilReady(ctx context.Context, p pinger, attempts int, log *zap.Logger) error {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialBackoff = 500 * time.Millisecond
	cfg.OnRetry = func(attempt int, err error) {
		log.Warn("postgres not ready", zap.Int("attempt", attempt), zap.Error(err))
	}
	_, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.Ping(ctx)
	})
	return err
}
