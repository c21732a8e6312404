package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Pool sizing for the certificate service: bulk generation and email
// dispatch fan out short queries across worker goroutines.
const (
	minPoolConns    = 2
	maxPoolConns    = 10
	maxConnLifetime = 30 * time.Minute
)

// NewPostgresPool opens a pgx pool against the certificate database and
// verifies connectivity before returning it.
func NewPostgresPool(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if config.MaxConns < maxPoolConns {
		config.MaxConns = maxPoolConns
	}
	config.MinConns = minPoolConns
	config.MaxConnLifetime = maxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping certificate database: %w", err)
	}

	logger.Info("certificate database pool established",
		zap.Int32("max_conns", pool.Config().MaxConns))
	return pool, nil
}
