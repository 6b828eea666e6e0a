package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/moderation-ai/modai/automod/helpers"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

var redisCachePrefix = "modai/cache/"

// Redis-backed cache, with a small in-process TinyLFU in front of it. Entries written by other processes are visible after the local entry expires.
type RedisCacheStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return NewRedisCacheStoreFromClient(rdb, ttl), nil
}

func NewRedisCacheStoreFromClient(rdb *redis.Client, ttl time.Duration) *RedisCacheStore {
	// local cache TTL is capped, so that a purge in another process is seen quickly
	localTTL := ttl
	if localTTL > time.Minute {
		localTTL = time.Minute
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, localTTL),
	})
	return &RedisCacheStore{
		Data: data,
		TTL:  ttl,
	}
}

// Keys are hashed, since comment IDs on some platforms are long opaque strings.
func redisCacheKey(name, key string) string {
	return redisCachePrefix + name + "/" + helpers.HashOfString(key)
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	var val string
	err := s.Data.Get(ctx, redisCacheKey(name, key), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val string) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(name, key),
		Value: val,
		TTL:   s.TTL,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	err := s.Data.Delete(ctx, redisCacheKey(name, key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
