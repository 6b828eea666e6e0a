package countstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisCountPrefix    = "modai/count/"
	redisDistinctPrefix = "modai/distinct/"
)

// expiry per period bucket; all-time buckets never expire
var periodTTL = map[string]time.Duration{
	PeriodHour:  2 * time.Hour,
	PeriodDay:   48 * time.Hour,
	PeriodTotal: 0,
}

// Counters shared between processes. Day and hour buckets expire on their own.
type RedisCountStore struct {
	Client *redis.Client
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.TODO()).Err(); err != nil {
		return nil, err
	}
	return NewRedisCountStoreFromClient(rdb), nil
}

// Wraps an existing client, which may be shared with other stores.
func NewRedisCountStoreFromClient(rdb *redis.Client) *RedisCountStore {
	return &RedisCountStore{Client: rdb}
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	key := redisCountPrefix + bucketKey(name, val, period, time.Now())
	c, err := s.Client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return c, err
}

// All period buckets are written in one pipelined round-trip.
func (s *RedisCountStore) Increment(ctx context.Context, name, val string) error {
	now := time.Now()
	_, err := s.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, period := range Periods {
			key := redisCountPrefix + bucketKey(name, val, period, now)
			pipe.Incr(ctx, key)
			if ttl := periodTTL[period]; ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
		}
		return nil
	})
	return err
}

func (s *RedisCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	key := redisDistinctPrefix + bucketKey(name, bucket, period, time.Now())
	c, err := s.Client.PFCount(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return int(c), err
}

// Distinct counts are HyperLogLog estimates, exact for small sets.
func (s *RedisCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	now := time.Now()
	_, err := s.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, period := range Periods {
			key := redisDistinctPrefix + bucketKey(name, bucket, period, now)
			pipe.PFAdd(ctx, key, val)
			if ttl := periodTTL[period]; ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
		}
		return nil
	})
	return err
}
