package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisWrapper guards the search cache's Redis client with a breaker.
// A cache miss (redis.Nil) is not a failure.
type RedisWrapper struct {
	client  *redis.Client
	cb      *CircuitBreaker
	service string
}

// NewRedisWrapper wraps client with a breaker tuned by CB_REDIS_* settings
func NewRedisWrapper(client *redis.Client, service string, logger *zap.Logger) *RedisWrapper {
	cb := NewCircuitBreaker("redis:"+service, GetRedisConfig().ToConfig(), logger)
	GlobalMetricsCollector.RegisterCircuitBreaker(service, cb)
	return &RedisWrapper{client: client, cb: cb, service: service}
}

func (rw *RedisWrapper) run(ctx context.Context, fn func() error) error {
	err := rw.cb.Execute(ctx, fn)
	GlobalMetricsCollector.RecordRequest(rw.cb.name, rw.service, rw.cb.State(), err == nil)
	return err
}

// Ping checks connectivity
func (rw *RedisWrapper) Ping(ctx context.Context) error {
	return rw.run(ctx, func() error { return rw.client.Ping(ctx).Err() })
}

// Get returns the value at key; found is false on a miss
func (rw *RedisWrapper) Get(ctx context.Context, key string) (val []byte, found bool, err error) {
	err = rw.run(ctx, func() error {
		b, getErr := rw.client.Get(ctx, key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		val, found = b, true
		return nil
	})
	return val, found, err
}

// Set stores value at key with a TTL
func (rw *RedisWrapper) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return rw.run(ctx, func() error { return rw.client.Set(ctx, key, value, ttl).Err() })
}

// Close closes the underlying client
func (rw *RedisWrapper) Close() error {
	return rw.client.Close()
}

// IsCircuitBreakerOpen reports whether calls are currently rejected
func (rw *RedisWrapper) IsCircuitBreakerOpen() bool {
	return rw.cb.State() == StateOpen
}
