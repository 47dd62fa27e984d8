package xcache

import (
	"context"
	"errors"

	"github.com/eko/gocache/lib/v4/store"
)

// ErrCacheNotConfigured is the cause of every miss of a noop cache.
var ErrCacheNotConfigured = errors.New("cache not configured")

// noopCache stores nothing, every Get is a miss.
type noopCache[T any] struct{}

// NewNoop creates a cache that is always empty, so callers never need a nil check.
func NewNoop[T any]() Cache[T] {
	return &noopCache[T]{}
}

func (n *noopCache[T]) Get(ctx context.Context, key any) (T, error) {
	var zero T
	return zero, store.NotFoundWithCause(ErrCacheNotConfigured)
}

func (n *noopCache[T]) Set(ctx context.Context, key any, object T, options ...Option) error {
	return nil
}

func (n *noopCache[T]) Delete(ctx context.Context, key any) error {
	return nil
}

func (n *noopCache[T]) Invalidate(ctx context.Context, options ...store.InvalidateOption) error {
	return nil
}

func (n *noopCache[T]) Clear(ctx context.Context) error {
	return nil
}

func (n *noopCache[T]) GetType() string {
	return "noop"
}

// IsMiss reports whether err only means the key is not cached.
func IsMiss(err error) bool {
	var ptr *store.NotFound
	if errors.As(err, &ptr) {
		return true
	}

	var val store.NotFound

	return errors.As(err, &val)
}
