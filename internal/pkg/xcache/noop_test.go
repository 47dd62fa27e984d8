package xcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopCache(t *testing.T) {
	ctx := t.Context()
	cache := NewNoop[profile]()

	_, err := cache.Get(ctx, "user:1")
	assert.ErrorIs(t, err, ErrCacheNotConfigured)
	assert.True(t, IsMiss(err))

	assert.NoError(t, cache.Set(ctx, "user:1", profile{ID: "1"}))

	_, err = cache.Get(ctx, "user:1")
	assert.ErrorIs(t, err, ErrCacheNotConfigured)

	assert.NoError(t, cache.Delete(ctx, "user:1"))
	assert.NoError(t, cache.Invalidate(ctx))
	assert.NoError(t, cache.Clear(ctx))
	assert.Equal(t, "noop", cache.GetType())
}
