package redis

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/drinks-catalog-go/catalog"
	"github.com/ggoodman/drinks-catalog-go/catalog/catalogtest"
)

func TestRedisStore(t *testing.T) {
	// Skip test if Redis is not available
	probe := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379", DB: 3})
	if err := probe.Ping(context.Background()).Err(); err != nil {
		_ = probe.Close()
		t.Skipf("Redis not available: %v", err)
	}
	_ = probe.Close()

	catalogtest.RunStoreTests(t, func(t *testing.T) catalog.Store {
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379", DB: 3})
		prefix := "catalogtest:" + uuid.NewString() + ":"
		t.Cleanup(func() {
			c := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379", DB: 3})
			defer c.Close()
			ctx := context.Background()
			iter := c.Scan(ctx, 0, prefix+"*", 100).Iterator()
			for iter.Next(ctx) {
				c.Del(ctx, iter.Val())
			}
		})
		s, err := New(Config{Client: client, KeyPrefix: prefix})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s
	})
}

func TestNew_RequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without client")
	}
}
