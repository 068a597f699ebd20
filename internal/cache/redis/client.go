// Package redis implements the domain cache, lock and bus interfaces using
// go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// Prefix namespaces every key written by this package. Empty means no
	// prefix.
	Prefix string
}

// Client wraps a go-redis Client and provides connectivity helpers.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New creates a new Redis Client, pings it to verify connectivity, and returns
// the wrapper.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	c := Wrap(redis.NewClient(opts), cfg.Prefix)
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Wrap adopts an existing go-redis client.
func Wrap(rdb *redis.Client, prefix string) *Client {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Client{rdb: rdb, prefix: prefix}
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw *redis.Client.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}

// key joins parts with ':' under the client prefix.
func (c *Client) key(parts ...string) string {
	return c.prefix + strings.Join(parts, ":")
}
