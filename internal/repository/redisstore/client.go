// Package redisstore contains Redis-backed stores for guest usage and revoked tokens.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the Redis connection.
type Options struct {
	URL          string
	PoolSize     int
	MinIdleConns int
}

// Connect parses the URL, opens a client and pings it.
func Connect(ctx context.Context, o Options) (*redis.Client, error) {
	opts, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if o.PoolSize > 0 {
		opts.PoolSize = o.PoolSize
	}
	if o.MinIdleConns > 0 {
		opts.MinIdleConns = o.MinIdleConns
	}
	opts.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opts)
	if err := NewChecker(client).Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Checker adapts a client to the readiness checker interface.
type Checker struct{ c redis.UniversalClient }

// NewChecker wraps c for readiness checks.
func NewChecker(c redis.UniversalClient) Checker { return Checker{c: c} }

// Ping reports whether Redis answers within five seconds.
func (p Checker) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.c.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
