// Package cache owns the Redis connection shared by the notification stream and
// the auth rate limiter.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// clientName shows up in CLIENT LIST next to blocked XREADGROUP calls.
const clientName = "credittrack"

// Cache wraps the Redis client.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and verifies the connection with PING.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := clientOptions(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// clientOptions parses redisURL and applies pool settings. A stream consumer holds
// a connection for the whole XREADGROUP block, so the pool keeps spare idle
// connections for the request path.
func clientOptions(redisURL string) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.ClientName = clientName
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	return opt, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping implements the readiness check.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the client for the notification queue and worker.
func (c *Cache) Client() *redis.Client {
	return c.client
}
