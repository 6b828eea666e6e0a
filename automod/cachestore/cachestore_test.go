package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCacheStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(10, time.Hour)

	v, err := cs.Get(ctx, "outcome", "reddit/c1/hide")
	assert.NoError(err)
	assert.Equal("", v)

	assert.NoError(cs.Set(ctx, "outcome", "reddit/c1/hide", `{"success":true}`))
	v, err = cs.Get(ctx, "outcome", "reddit/c1/hide")
	assert.NoError(err)
	assert.Equal(`{"success":true}`, v)

	// names are separate namespaces
	v, err = cs.Get(ctx, "other", "reddit/c1/hide")
	assert.NoError(err)
	assert.Equal("", v)

	assert.Equal(1, cs.Len())

	assert.NoError(cs.Purge(ctx, "outcome", "reddit/c1/hide"))
	v, err = cs.Get(ctx, "outcome", "reddit/c1/hide")
	assert.NoError(err)
	assert.Equal("", v)
}

func TestMemCacheStoreCapacity(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(2, time.Hour)
	assert.NoError(cs.Set(ctx, "outcome", "a", "1"))
	assert.NoError(cs.Set(ctx, "outcome", "b", "2"))
	assert.NoError(cs.Set(ctx, "outcome", "c", "3"))
	assert.Equal(2, cs.Len())
	v, err := cs.Get(ctx, "outcome", "a")
	assert.NoError(err)
	assert.Equal("", v)

	// non-positive capacity falls back to a default
	assert.NotPanics(func() { NewMemCacheStore(0, time.Hour) })
}

func TestRedisCacheKey(t *testing.T) {
	assert := assert.New(t)

	k := redisCacheKey("outcome", "youtube/UgzQ8xgYz9v/hide")
	assert.Equal(redisCacheKey("outcome", "youtube/UgzQ8xgYz9v/hide"), k)
	assert.NotEqual(redisCacheKey("outcome", "youtube/UgzQ8xgYz9v/delete"), k)
	assert.Equal(len("modai/cache/outcome/")+16, len(k))
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(10, 20*time.Millisecond)
	assert.NoError(cs.Set(ctx, "outcome", "k", "v"))
	time.Sleep(60 * time.Millisecond)
	v, err := cs.Get(ctx, "outcome", "k")
	assert.NoError(err)
	assert.Equal("", v)
}

func TestRedisCacheStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	cs, err := NewRedisCacheStore("redis://localhost:6379/0", time.Minute)
	if err != nil {
		t.Fail()
	}
	assert.NoError(cs.Set(ctx, "outcome", "k", "v"))
	v, err := cs.Get(ctx, "outcome", "k")
	assert.NoError(err)
	assert.Equal("v", v)
	assert.NoError(cs.Purge(ctx, "outcome", "k"))
}

func TestMemcachedExpiry(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(int32(3600), memcachedExpiry(time.Hour))
	assert.Equal(int32(maxMemcachedExpiry), memcachedExpiry(90*24*time.Hour))
	assert.Equal(int32(0), memcachedExpiry(-time.Second))

	k := memcachedKey("outcome", "tiktok/7301 with spaces/hide")
	assert.NotContains(k, " ")
}

func TestMemcachedCacheStoreBasics(t *testing.T) {
	t.Skip("live test, need memcached running locally")
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemcachedCacheStore([]string{"localhost:11211"}, time.Hour)

	assert.NoError(cs.Set(ctx, "outcome", "reddit/c1/hide", "v1"))
	v, err := cs.Get(ctx, "outcome", "reddit/c1/hide")
	assert.NoError(err)
	assert.Equal("v1", v)

	assert.NoError(cs.Purge(ctx, "outcome", "reddit/c1/hide"))
	assert.NoError(cs.Purge(ctx, "outcome", "reddit/c1/hide"))
	v, err = cs.Get(ctx, "outcome", "reddit/c1/hide")
	assert.NoError(err)
	assert.Equal("", v)
}
