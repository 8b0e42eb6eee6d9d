package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap/zaptest"
)

func TestRedisWrapper_NormalOperations(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	wrapper := NewRedisWrapper(client, "search-cache-test", zaptest.NewLogger(t))
	defer wrapper.Close()
	ctx := context.Background()

	if err := wrapper.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := wrapper.Set(ctx, "search:key", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, found, err := wrapper.Get(ctx, "search:key")
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if string(val) != "value" {
		t.Errorf("Expected 'value', got '%s'", val)
	}

	_, found, err = wrapper.Get(ctx, "search:missing")
	if err != nil {
		t.Errorf("Miss should not be an error, got %v", err)
	}
	if found {
		t.Error("Expected miss for unknown key")
	}
	if wrapper.IsCircuitBreakerOpen() {
		t.Error("Circuit breaker should remain closed on cache misses")
	}
}

func TestRedisWrapper_OpensWhenServerGone(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{
		Addr:        s.Addr(),
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	wrapper := NewRedisWrapper(client, "search-cache-down", zaptest.NewLogger(t))
	defer wrapper.Close()
	s.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, _, _ = wrapper.Get(ctx, "k")
	}
	if !wrapper.IsCircuitBreakerOpen() {
		t.Error("Expected breaker to open after repeated connection failures")
	}
	if _, _, err := wrapper.Get(ctx, "k"); err != ErrCircuitBreakerOpen {
		t.Errorf("Expected ErrCircuitBreakerOpen, got %v", err)
	}
}
