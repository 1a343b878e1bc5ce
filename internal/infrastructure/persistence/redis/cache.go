// Package redis implements the Redis client and the shared leaderboard
// snapshot cache. Every key this package writes starts with the configured
// prefix so several deployments can share one Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/practice-hub/config"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheConnection is returned when Redis cannot be reached.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when a cached value cannot be decoded.
	ErrCacheSerialization = errors.New("cache: serialization failed")
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache owns the Redis client and the key prefix.
type Cache struct {
	client *redis.Client
	prefix string
}

// Options builds go-redis options from the settings. A URL wins over the
// individual host fields.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// NewCache connects to Redis and verifies the connection with a ping.
func NewCache(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return &Cache{client: client, prefix: cfg.KeyPrefix}, nil
}

// Client returns the underlying Redis client. The event bus publishes over it.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Key prefixes parts with the configured prefix.
func (c *Cache) Key(parts ...string) string {
	key := c.prefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return nil
}

// HealthStatus describes the Redis connection.
type HealthStatus struct {
	Healthy     bool          `json:"healthy"`
	Error       string        `json:"error,omitempty"`
	PingLatency time.Duration `json:"ping_latency"`
	TotalConns  uint32        `json:"total_conns"`
	IdleConns   uint32        `json:"idle_conns"`
	Timeouts    uint32        `json:"timeouts"`
}

// Health pings Redis and reports pool statistics.
func (c *Cache) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	err := c.client.Ping(ctx).Err()
	st := c.client.PoolStats()

	h := HealthStatus{
		Healthy:     err == nil,
		PingLatency: time.Since(start),
		TotalConns:  st.TotalConns,
		IdleConns:   st.IdleConns,
		Timeouts:    st.Timeouts,
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}
