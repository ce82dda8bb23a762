//go:build integration
// +build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func redisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "127.0.0.1:6379"
}

// TestRedisCache_GetSet_Integration verifies that RedisCache stores and retrieves
// a location and reports a miss for unknown keys.
func TestRedisCache_GetSet_Integration(t *testing.T) {
	c := NewRedisCache(redisAddr(), os.Getenv("REDIS_PASSWORD"), 0)
	defer c.Close()

	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	val := testLocation("seattle")
	if err := c.Set(ctx, "seattle", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "seattle")
	if err != nil || !ok {
		t.Fatalf("Get() = (_, %v, %v), want hit", ok, err)
	}
	if got != val {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}

	_, ok, err = c.Get(ctx, "nonexistent-location-key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}
