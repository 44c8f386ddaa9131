// Package redis confines go-redis to one place. Other packages accept
// Cmdable and never import the driver directly.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aelexs/otp-dispatch/internal/domain"
)

// Cmdable is a type alias for redis.Cmdable.
type Cmdable = redis.Cmdable

// Config holds the parameters needed to connect to a Redis instance.
type Config struct {
	Addr     string
	Password domain.SecretString
	DB       int
	Timeout  time.Duration // read, write and dial timeout
}

// Client wraps a go-redis client. RDB is the handle limiters use.
type Client struct {
	RDB *redis.Client
}

// NewClient creates a new Redis client configured from cfg. No connection is
// made until the first command; call Ping to fail fast at startup.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = domain.RedisTimeout
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password.Expose(),
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	return &Client{RDB: rdb}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.RDB.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w: %w", domain.ErrUnavailable, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.RDB.Close()
}
