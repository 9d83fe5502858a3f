package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ggoodman/drinks-catalog-go/auth"
	"github.com/ggoodman/drinks-catalog-go/catalog"
	"github.com/ggoodman/drinks-catalog-go/catalog/memory"
	"github.com/ggoodman/drinks-catalog-go/catalog/postgres"
	"github.com/ggoodman/drinks-catalog-go/catalog/redis"
	"github.com/ggoodman/drinks-catalog-go/internal/config"
)

// newGate builds the authorization gate, discovering the key set location
// when none is configured.
func newGate(ctx context.Context, cfg *config.Config, opts ...auth.Option) (*auth.Gate, error) {
	sec := cfg.Security()
	if !cfg.NeedsDiscovery() {
		return sec.NewGate(opts...)
	}

	auds := sec.Audiences
	opts = append(opts,
		auth.WithAdditionalAudiences(auds[1:]...),
		auth.WithAllowedAlgs(sec.AllowedAlgs...),
		auth.WithLeeway(sec.Leeway),
		auth.WithFetchTimeout(sec.FetchTimeout),
	)
	return auth.NewFromDiscovery(ctx, sec.Issuer, auds[0], opts...)
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (catalog.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Store.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		log.InfoContext(ctx, "store.open", slog.String("backend", "redis"), slog.String("addr", cfg.Store.RedisAddr))
		return redis.New(redis.Config{Client: client, KeyPrefix: cfg.Store.RedisKeyPrefix})
	case config.StorePostgres:
		log.InfoContext(ctx, "store.open", slog.String("backend", "postgres"))
		return postgres.Open(ctx, cfg.Store.DatabaseURL)
	default:
		log.InfoContext(ctx, "store.open", slog.String("backend", "memory"))
		return memory.New(), nil
	}
}
