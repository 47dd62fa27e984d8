package xcache

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/store"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
	redis "github.com/redis/go-redis/v9"

	"github.com/looplj/todohub/internal/log"
	redis_store "github.com/looplj/todohub/internal/pkg/xcache/redis"
	"github.com/looplj/todohub/internal/pkg/xredis"
)

// Cache is an alias to the gocache CacheInterface, see github.com/eko/gocache/lib/v4/cache.
type Cache[T any] = cachelib.CacheInterface[T]

type SetterCache[T any] = cachelib.SetterCacheInterface[T]

const defaultKeyPrefix = "todohub:"

// NewMemory creates an in-memory cache backed by patrickmn/go-cache.
func NewMemory[T any](expiration, cleanupInterval time.Duration) SetterCache[T] {
	client := gocache.New(expiration, cleanupInterval)
	return cachelib.New[T](gocache_store.NewGoCache(client, store.WithExpiration(expiration)))
}

// NewRedis creates a redis cache storing JSON encoded values under keyPrefix.
func NewRedis[T any](client redis.Cmdable, keyPrefix string, options ...Option) SetterCache[T] {
	return cachelib.New[T](redis_store.NewStore[T](client, keyPrefix, options...))
}

// NewTwoLevel reads memory first, then redis, and fills memory on a redis hit.
func NewTwoLevel[T any](memory, redis SetterCache[T]) Cache[T] {
	return cachelib.NewChain[T](memory, redis)
}

// NewFromConfig builds a typed cache from cfg, an empty mode yields a noop cache.
// Memory and Redis expiration are configured separately.
func NewFromConfig[T any](ctx context.Context, cfg Config) (Cache[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Mode == "" {
		return NewNoop[T](), nil
	}

	memExpiration := defaultIfZero(cfg.Memory.Expiration, 5*time.Minute)
	mem := NewMemory[T](memExpiration, defaultIfZero(cfg.Memory.CleanupInterval, 10*time.Minute))

	var rds SetterCache[T]

	if cfg.Mode != ModeMemory && cfg.Redis.Enabled() {
		client, err := xredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("invalid redis cache config: %w", err)
		}

		prefix := cfg.Redis.KeyPrefix
		if prefix == "" {
			prefix = defaultKeyPrefix
		}

		rds = NewRedis[T](client, prefix, WithExpiration(defaultIfZero(cfg.Redis.Expiration, 30*time.Minute)))
	}

	switch cfg.Mode {
	case ModeTwoLevel:
		if rds != nil {
			log.Info(ctx, "using two-level cache")
			return NewTwoLevel[T](mem, rds), nil
		}

		log.Warn(ctx, "two-level cache without redis, using memory cache")

		return mem, nil
	case ModeRedis:
		log.Info(ctx, "using redis cache")

		return rds, nil
	default:
		log.Info(ctx, "using memory cache")
		return mem, nil
	}
}

func defaultIfZero(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}

	return d
}
