package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/moderation-ai/modai/automod/helpers"

	"github.com/bradfitz/gomemcache/memcache"
)

var memcachedPrefix = "modai/cache/"

// memcached rejects relative expirations beyond 30 days
const maxMemcachedExpiry = 30*24*60*60 - 60

// Memcached-backed cache, for deployments which share idempotency records without running redis. The context is ignored; the client has its own timeouts.
type MemcachedCacheStore struct {
	Client *memcache.Client
	expiry int32
}

var _ CacheStore = (*MemcachedCacheStore)(nil)

func NewMemcachedCacheStore(servers []string, ttl time.Duration) *MemcachedCacheStore {
	return &MemcachedCacheStore{
		Client: memcache.New(servers...),
		expiry: memcachedExpiry(ttl),
	}
}

func memcachedExpiry(ttl time.Duration) int32 {
	secs := int64(ttl.Seconds())
	if secs > maxMemcachedExpiry {
		return maxMemcachedExpiry
	}
	if secs < 0 {
		return 0
	}
	return int32(secs)
}

// Keys are hashed: memcached limits keys to 250 bytes with no whitespace.
func memcachedKey(name, key string) string {
	return memcachedPrefix + name + "/" + helpers.HashOfString(key)
}

func (s *MemcachedCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	item, err := s.Client.Get(memcachedKey(name, key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(item.Value), nil
}

func (s *MemcachedCacheStore) Set(ctx context.Context, name, key string, val string) error {
	return s.Client.Set(&memcache.Item{
		Key:        memcachedKey(name, key),
		Value:      []byte(val),
		Expiration: s.expiry,
	})
}

func (s *MemcachedCacheStore) Purge(ctx context.Context, name, key string) error {
	err := s.Client.Delete(memcachedKey(name, key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}
