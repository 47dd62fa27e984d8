// Package redis is a typed gocache store that keeps JSON encoded values under a key prefix.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lib_store "github.com/eko/gocache/lib/v4/store"
	redis "github.com/redis/go-redis/v9"
)

const (
	// RedisType represents the storage type as a string value.
	RedisType = "redis"

	defaultTagsTTL = 720 * time.Hour
)

// Store keeps values of type T as JSON under prefix+key.
type Store[T any] struct {
	client  redis.Cmdable
	prefix  string
	options *lib_store.Options
}

func NewStore[T any](client redis.Cmdable, prefix string, options ...lib_store.Option) *Store[T] {
	return &Store[T]{
		client:  client,
		prefix:  prefix,
		options: lib_store.ApplyOptions(options...),
	}
}

func (s *Store[T]) key(key any) (string, error) {
	k, ok := key.(string)
	if !ok {
		return "", fmt.Errorf("expected string key, got %T", key)
	}

	return s.prefix + k, nil
}

func (s *Store[T]) tagKey(tag string) string {
	return s.prefix + "tag:" + tag
}

func (s *Store[T]) Get(ctx context.Context, key any) (any, error) {
	var result T

	k, err := s.key(key)
	if err != nil {
		return result, lib_store.NotFoundWithCause(err)
	}

	raw, err := s.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return result, lib_store.NotFoundWithCause(err)
	}

	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		var zero T
		return zero, fmt.Errorf("decode cached value %q: %w", k, err)
	}

	return result, nil
}

func (s *Store[T]) GetWithTTL(ctx context.Context, key any) (any, time.Duration, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return value, 0, err
	}

	k, _ := s.key(key)

	ttl, err := s.client.TTL(ctx, k).Result()
	if err != nil {
		var zero T
		return zero, 0, err
	}

	return value, ttl, nil
}

func (s *Store[T]) Set(ctx context.Context, key any, value any, options ...lib_store.Option) error {
	opts := lib_store.ApplyOptionsWithDefault(s.options, options...)

	k, err := s.key(key)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, k, raw, opts.Expiration).Err(); err != nil {
		return err
	}

	ttl := opts.TagsTTL
	if ttl == 0 {
		ttl = defaultTagsTTL
	}

	for _, tag := range opts.Tags {
		tagKey := s.tagKey(tag)
		s.client.SAdd(ctx, tagKey, k)
		s.client.Expire(ctx, tagKey, ttl)
	}

	return nil
}

func (s *Store[T]) Delete(ctx context.Context, key any) error {
	k, err := s.key(key)
	if err != nil {
		return err
	}

	return s.client.Del(ctx, k).Err()
}

// Invalidate removes every key registered under the given tags.
func (s *Store[T]) Invalidate(ctx context.Context, options ...lib_store.InvalidateOption) error {
	opts := lib_store.ApplyInvalidateOptions(options...)

	for _, tag := range opts.Tags {
		tagKey := s.tagKey(tag)

		keys, err := s.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return err
		}

		keys = append(keys, tagKey)
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Clear deletes the keys under the store prefix only.
func (s *Store[T]) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()

	var batch []string

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}

			batch = batch[:0]
		}
	}

	if err := iter.Err(); err != nil {
		return err
	}

	if len(batch) > 0 {
		return s.client.Del(ctx, batch...).Err()
	}

	return nil
}

func (s *Store[T]) GetType() string {
	return RedisType
}
