package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "hotelgate:response:"
	defaultTTL = 24 * time.Hour
)

// NewClient connects to redis and pings it.
func NewClient(ctx context.Context, addr string, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// ResponseCache keeps the last successful envelope of read requests, used when the backend is down.
type ResponseCache struct {
	client  *redis.Client
	log     *slog.Logger
	metrics *metrics.Metrics
	ttl     time.Duration
}

func NewResponseCache(client *redis.Client, log *slog.Logger, appMetrics *metrics.Metrics, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ResponseCache{client: client, log: log, metrics: appMetrics, ttl: ttl}
}

// Get returns the cached envelope of key.
func (c *ResponseCache) Get(ctx context.Context, key string) (envelope.Envelope, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.CacheOps.WithLabelValues("get", "miss").Inc()
		} else {
			c.metrics.CacheOps.WithLabelValues("get", "error").Inc()
			c.log.ErrorContext(ctx, "Failed to read cached response", "key", key, "error", err)
		}
		return envelope.Envelope{}, false
	}

	var env envelope.Envelope
	if err = json.Unmarshal(raw, &env); err != nil {
		c.metrics.CacheOps.WithLabelValues("get", "error").Inc()
		c.log.ErrorContext(ctx, "Failed to decode cached response", "key", key, "error", err)
		return envelope.Envelope{}, false
	}

	c.metrics.CacheOps.WithLabelValues("get", "hit").Inc()
	return env, true
}

// Set stores a successful envelope under key. Failed envelopes are never cached.
func (c *ResponseCache) Set(ctx context.Context, key string, env envelope.Envelope) {
	if !env.Success {
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		c.metrics.CacheOps.WithLabelValues("set", "error").Inc()
		c.log.ErrorContext(ctx, "Failed to encode response for cache", "key", key, "error", err)
		return
	}
	if err = c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.metrics.CacheOps.WithLabelValues("set", "error").Inc()
		c.log.ErrorContext(ctx, "Failed to write response to cache", "key", key, "error", err)
		return
	}
	c.metrics.CacheOps.WithLabelValues("set", "ok").Inc()
}

// Ping checks the redis connection.
func (c *ResponseCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}
