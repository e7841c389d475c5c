// Package redis backs checkout idempotency with Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout = 5 * time.Second
	commandTimeout     = time.Second
)

// Config holds the connection settings read from REDIS_*.
type Config struct {
	Addr     string
	Password string
	DB       int
	// DialTimeout bounds connection setup and the startup ping.
	DialTimeout time.Duration
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout <= 0 {
		return defaultDialTimeout
	}
	return c.DialTimeout
}

// NewClient builds a client without contacting the server. Commands fail
// until Redis is reachable and recover on their own afterwards, which lets
// the API start with idempotency degraded.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.dialTimeout(),
		ReadTimeout:  commandTimeout,
		WriteTimeout: commandTimeout,
	})
}

// Connect is NewClient followed by a ping; the client is closed when the
// ping fails.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := NewClient(cfg)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.dialTimeout())
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}
