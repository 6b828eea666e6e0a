package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// entries dropped for capacity before their TTL ran out; for the outcome cache these comments lose idempotency
var memCacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modai_memcache_evictions_total",
	Help: "Number of in-process cache entries evicted before expiry, by cache name",
}, []string{"name"})

// In-process cache, shared by all names. Capacity bounds the total across names; least recently used entries are evicted first.
type MemCacheStore struct {
	Data *expirable.LRU[string, string]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &MemCacheStore{
		Data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	v, ok := s.Data.Get(cacheKey(name, key))
	if !ok {
		return "", nil
	}
	return v, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val string) error {
	if evicted := s.Data.Add(cacheKey(name, key), val); evicted {
		memCacheEvictions.WithLabelValues(name).Inc()
	}
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.Data.Remove(cacheKey(name, key))
	return nil
}

// Number of live entries, across all names.
func (s *MemCacheStore) Len() int {
	return s.Data.Len()
}
