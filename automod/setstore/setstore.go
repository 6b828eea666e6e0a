package setstore

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
	Members(ctx context.Context, name string) ([]string, error)
}

// In-process set storage. Safe for concurrent use.
type MemSetStore struct {
	mu   *sync.RWMutex
	Sets map[string]map[string]bool
}

func NewMemSetStore() MemSetStore {
	return MemSetStore{
		mu:   &sync.RWMutex{},
		Sets: make(map[string]map[string]bool),
	}
}

func (s MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		// NOTE: currently returns false when entire set isn't found
		return false, nil
	}
	_, ok = set[val]
	return ok, nil
}

// Returns the members of a set in sorted order, or nil if the set does not exist.
func (s MemSetStore) Members(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for val := range set {
		out = append(out, val)
	}
	sort.Strings(out)
	return out, nil
}

func (s MemSetStore) Add(name string, vals ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Sets[name]
	if !ok {
		m = make(map[string]bool, len(vals))
		s.Sets[name] = m
	}
	for _, v := range vals {
		m[v] = true
	}
}

// Loads sets from a JSON file of the form {"set-name": ["val", ...], ...}. Sets already present with the same name are replaced.
func (s *MemSetStore) LoadFromFileJSON(p string) error {

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var rules map[string][]string
	if err := json.Unmarshal(raw, &rules); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, l := range rules {
		m := make(map[string]bool, len(l))
		for _, val := range l {
			m[val] = true
		}
		s.Sets[name] = m
	}
	return nil
}
