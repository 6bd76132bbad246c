// Package redisx wraps go-redis client construction for the engine.
package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps the Redis client with connection diagnostics.
type Client struct {
	*redis.Client
	log *zap.Logger
}

// NewClient builds a client from a redis:// URL and applies the pool and
// timeout defaults used across the engine.
func NewClient(url string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolSize = 10
	opts.MinIdleConns = 5
	opts.MaxRetries = 3

	client := &Client{
		Client: redis.NewClient(opts),
		log:    log.Named("redis"),
	}

	log.Info("redis client initialized",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
	)

	client.PingDiag(context.TODO())

	return client, nil
}

// PingDiag pings with a short timeout and logs connection diagnostics.
func (c *Client) PingDiag(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	opts := c.Options()
	log := c.log.With(
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
	)

	start := time.Now()
	err := c.Client.Ping(ctx).Err()
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("connection failed", zap.Error(err), zap.Duration("ping_rtt", elapsed))
	} else {
		log.Info("connection established", zap.Duration("ping_rtt", elapsed))
	}
}
