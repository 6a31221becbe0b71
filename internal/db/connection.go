package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolOptions sizes the Postgres pool. The ETL is a single writer with a
// handful of readers from the API, so small numbers are enough.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
	ApplicationName string
}

var DefaultPoolOptions = PoolOptions{
	MaxConns:        10,
	MinConns:        1,
	MaxConnIdleTime: 30 * time.Second,
	MaxConnLifetime: 5 * time.Minute,
	ConnectTimeout:  5 * time.Second,
	ApplicationName: "fiindo-etl",
}

// poolConfig parses dsn and applies opts. Settings already present in the
// DSN (pool_max_conns, application_name) win over opts.
func poolConfig(dsn string, opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if opts.MaxConns > 0 && !strings.Contains(dsn, "pool_max_conns") {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 && !strings.Contains(dsn, "pool_min_conns") {
		cfg.MinConns = min(opts.MinConns, cfg.MaxConns)
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.ApplicationName != "" {
		if _, set := cfg.ConnConfig.RuntimeParams["application_name"]; !set {
			cfg.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
		}
	}
	return cfg, nil
}

// Connect opens a pgx pool and pings it. ctx bounds the dial and ping, so a
// signal during startup aborts instead of waiting out the connect timeout.
func Connect(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn, opts)
	if err != nil {
		return nil, err
	}

	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return p, nil
}

// checkServer logs the server version and clock so a misconfigured
// DATABASE_URL is obvious in the first lines of a run.
func checkServer(ctx context.Context, p *pgxpool.Pool, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		now     time.Time
		version string
	)
	if err := p.QueryRow(ctx, "SELECT NOW(), current_setting('server_version')").Scan(&now, &version); err != nil {
		return fmt.Errorf("server check: %w", err)
	}
	logger.Info("database connection ok",
		zap.String("backend", BackendPostgres),
		zap.String("server_version", version),
		zap.Time("server_time", now),
		zap.Int32("max_conns", p.Config().MaxConns),
	)
	return nil
}
