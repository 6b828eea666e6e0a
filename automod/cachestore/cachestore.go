package cachestore

import (
	"context"
)

// Named string caches with a fixed TTL. A miss is an empty string and a nil error.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

func cacheKey(name, key string) string {
	return name + "/" + key
}
