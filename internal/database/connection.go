package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultApplicationName = "knowctx"

// Config holds database connection configuration
type Config struct {
	URL      string
	MaxConns int32
	MinConns int32
	// ApplicationName shows up in pg_stat_activity. Defaults to knowctx.
	ApplicationName string
	// MaxConnIdleTime closes idle connections after this long when positive.
	MaxConnIdleTime time.Duration
}

// NewPool opens a pgx pool and pings it. Vector columns are bound through
// pgvector-go values, so no type registration happens on connect.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	appName := cfg.ApplicationName
	if appName == "" {
		appName = defaultApplicationName
	}
	if _, set := poolConfig.ConnConfig.RuntimeParams["application_name"]; !set {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = appName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
