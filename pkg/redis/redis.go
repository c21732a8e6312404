package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps go-redis for the email job queue.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient connects to the Redis instance backing the email queue and
// pings it before returning.
func NewClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping email queue redis: %w", err)
	}

	logger.Info("email queue redis connected",
		zap.String("addr", addr),
		zap.Int("db", db))
	return &Client{Client: rdb, logger: logger}, nil
}
