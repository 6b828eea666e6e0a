package flagstore

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

var redisFlagPrefix string = "modai/flag/"

// Stores each subject's flags as a redis set.
type RedisFlagStore struct {
	Client *redis.Client
}

var _ FlagStore = (*RedisFlagStore)(nil)

func NewRedisFlagStore(redisURL string) (*RedisFlagStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return NewRedisFlagStoreFromClient(rdb), nil
}

// Wraps an existing client, which may be shared with other stores.
func NewRedisFlagStoreFromClient(rdb *redis.Client) *RedisFlagStore {
	return &RedisFlagStore{Client: rdb}
}

func (s *RedisFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	l, err := s.Client.SMembers(ctx, redisFlagPrefix+key).Result()
	if err == redis.Nil {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	sort.Strings(l)
	return l, nil
}

func (s *RedisFlagStore) Add(ctx context.Context, key string, flags []string) error {
	vals := make([]interface{}, 0, len(flags))
	for _, f := range flags {
		if f != "" {
			vals = append(vals, f)
		}
	}
	if len(vals) == 0 {
		return nil
	}
	return s.Client.SAdd(ctx, redisFlagPrefix+key, vals...).Err()
}

func (s *RedisFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	vals := make([]interface{}, len(flags))
	for i, f := range flags {
		vals[i] = f
	}
	return s.Client.SRem(ctx, redisFlagPrefix+key, vals...).Err()
}
