// Package cache holds the optional Redis-backed snapshot cache used by the
// reporting endpoints. A nil *Redis is a valid, always-missing cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "callrouter:"

// Redis stores opaque byte snapshots under namespaced keys.
type Redis struct {
	rdb *redis.Client
}

// Options tunes the Redis client. Zero values fall back to conservative defaults.
type Options struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 3 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = time.Second
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 10
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 2 * time.Second
	}
	return o
}

// Open parses a redis:// URL, connects and validates the connection via PING.
func Open(ctx context.Context, rawURL string, o Options) (*Redis, error) {
	if rawURL == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	o = o.withDefaults()
	opts.DialTimeout = o.DialTimeout
	opts.ReadTimeout = o.ReadTimeout
	opts.WriteTimeout = o.WriteTimeout
	opts.PoolSize = o.PoolSize

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, o.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// New wraps an existing client.
func New(rdb *redis.Client) *Redis {
	if rdb == nil {
		return nil
	}
	return &Redis{rdb: rdb}
}

// Get returns the cached value and whether it was present.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if r == nil {
		return nil, false, nil
	}
	b, err := r.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set stores val for ttl.
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if r == nil {
		return nil
	}
	return r.rdb.Set(ctx, keyPrefix+key, val, ttl).Err()
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil {
		return nil
	}
	return r.rdb.Close()
}

// AudioStatsKey names the stats snapshot for the local calendar day of now.
func AudioStatsKey(now time.Time) string {
	return "audio-stats:" + now.Format("2006-01-02")
}
