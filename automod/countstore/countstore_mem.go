package countstore

import (
	"context"
	"sync"
	"time"
)

// In-process counters, safe for concurrent use. Old buckets are never evicted; counts are lost on restart.
type MemCountStore struct {
	// defaults to time.Now
	Clock func() time.Time

	lk       sync.Mutex
	counts   map[string]int
	distinct map[string]map[string]struct{}
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		counts:   make(map[string]int),
		distinct: make(map[string]map[string]struct{}),
	}
}

func (s *MemCountStore) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	key := bucketKey(name, val, period, s.now())
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.counts[key], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) error {
	now := s.now()
	s.lk.Lock()
	defer s.lk.Unlock()
	for _, p := range Periods {
		s.counts[bucketKey(name, val, p, now)]++
	}
	return nil
}

func (s *MemCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	key := bucketKey(name, bucket, period, s.now())
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.distinct[key]), nil
}

func (s *MemCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	now := s.now()
	s.lk.Lock()
	defer s.lk.Unlock()
	for _, p := range Periods {
		key := bucketKey(name, bucket, p, now)
		seen, ok := s.distinct[key]
		if !ok {
			seen = make(map[string]struct{})
			s.distinct[key] = seen
		}
		seen[val] = struct{}{}
	}
	return nil
}
