package redisclient

import (
  "context"
  "errors"
  "time"

  "github.com/cenkalti/backoff/v4"
  "github.com/go-redis/redis/v8"

  "cryptotrack/pkg/metrics"
)

// ErrCacheMiss is returned when a key is absent. Callers fall through
// to the upstream fetch.
var ErrCacheMiss = errors.New("cache miss")

type Client struct {
  rdb *redis.Client
}

// New constructs a Client with sensible defaults & retry logic
func New(redisURL string) (*Client, error) {
  opt, err := redis.ParseURL(redisURL)
  if err != nil {
    return nil, err
  }
  opt.PoolSize = 20
  opt.MinIdleConns = 5
  opt.MaxRetries = 3
  opt.DialTimeout = 5 * time.Second
  opt.ReadTimeout = 3 * time.Second
  opt.WriteTimeout = 3 * time.Second
  opt.IdleTimeout = 5 * time.Minute
  return &Client{rdb: redis.NewClient(opt)}, nil
}

// withMetrics wraps operations with metrics collection
func (c *Client) withMetrics(operation string, fn func() error) error {
  start := time.Now()
  err := fn()
  duration := time.Since(start).Seconds()

  metrics.RedisOperationDuration.WithLabelValues(operation, getStatus(err)).Observe(duration)
  if err != nil && !errors.Is(err, ErrCacheMiss) {
    metrics.RedisErrors.WithLabelValues(operation).Inc()
  }
  return err
}

// getStatus returns "success" or "error" for metrics
func getStatus(err error) string {
  if err != nil && !errors.Is(err, ErrCacheMiss) {
    return "error"
  }
  return "success"
}

// retryPolicy bounds each operation to three quick attempts.
func retryPolicy(ctx context.Context) backoff.BackOff {
  bo := backoff.NewExponentialBackOff()
  bo.InitialInterval = 50 * time.Millisecond
  bo.MaxElapsedTime = time.Second
  return backoff.WithContext(bo, ctx)
}

// Get fetches a cached value, returning ErrCacheMiss when absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
  var value string
  err := c.withMetrics("get", func() error {
    return backoff.Retry(func() error {
      v, err := c.rdb.Get(ctx, key).Result()
      if errors.Is(err, redis.Nil) {
        return backoff.Permanent(ErrCacheMiss)
      }
      if err != nil {
        return err
      }
      value = v
      return nil
    }, retryPolicy(ctx))
  })
  return value, err
}

// Set stores a value under key with a TTL.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
  return c.withMetrics("set", func() error {
    return backoff.Retry(func() error {
      return c.rdb.Set(ctx, key, value, ttl).Err()
    }, retryPolicy(ctx))
  })
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
  return c.withMetrics("ping", func() error {
    return c.rdb.Ping(ctx).Err()
  })
}

// Close releases the connection pool.
func (c *Client) Close() error {
  return c.rdb.Close()
}
