package flagstore

import (
	"context"
	"sort"
	"sync"
)

// In-process flags. Empty flag names are ignored.
type MemFlagStore struct {
	lk    sync.RWMutex
	flags map[string]map[string]struct{}
}

var _ FlagStore = (*MemFlagStore)(nil)

func NewMemFlagStore() *MemFlagStore {
	return &MemFlagStore{
		flags: make(map[string]map[string]struct{}),
	}
}

// Returns flags in sorted order; never nil.
func (s *MemFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	out := make([]string, 0, len(s.flags[key]))
	for f := range s.flags[key] {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemFlagStore) Add(ctx context.Context, key string, flags []string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	set, ok := s.flags[key]
	if !ok {
		set = make(map[string]struct{}, len(flags))
	}
	for _, f := range flags {
		if f != "" {
			set[f] = struct{}{}
		}
	}
	if len(set) > 0 {
		s.flags[key] = set
	}
	return nil
}

// Removing a flag which isn't set is not an error. A key with no flags left is dropped.
func (s *MemFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	set, ok := s.flags[key]
	if !ok {
		return nil
	}
	for _, f := range flags {
		delete(set, f)
	}
	if len(set) == 0 {
		delete(s.flags, key)
	}
	return nil
}
