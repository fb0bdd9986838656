package cache

import (
	"encoding/json"
	"sync"
)

// Set is a bounded, unordered set of string identifiers. Add is
// idempotent; membership and iteration are the only operations the
// "terminally processed" DP/DO request caches need.
type Set struct {
	mu    sync.Mutex
	path  string
	limit int

	order []string
	data  map[string]struct{}
}

// NewSet opens (or creates) a Set cache backed by path.
func NewSet(path string, limit int) (*Set, error) {
	s := &Set{path: path, limit: limit, data: make(map[string]struct{})}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) load() error {
	raw, err := readFileOrEmpty(s.path)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		// Corrupt file: treat as empty store.
		return nil
	}
	for _, v := range order {
		if _, exists := s.data[v]; !exists {
			s.order = append(s.order, v)
			s.data[v] = struct{}{}
		}
	}
	return nil
}

func (s *Set) persistLocked() error {
	data, err := json.Marshal(s.order)
	if err != nil {
		return err
	}
	return atomicWriteFile(s.path, data)
}

// Add inserts v if absent. Idempotent: adding an existing value is a
// no-op that still succeeds.
func (s *Set) Add(v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[v]; exists {
		return nil
	}
	s.order = append(s.order, v)
	s.data[v] = struct{}{}

	for s.limit > 0 && len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.data, oldest)
	}

	return s.persistLocked()
}

// Remove deletes v if present. A no-op if v was never added.
func (s *Set) Remove(v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[v]; !exists {
		return nil
	}
	delete(s.data, v)
	for i, existing := range s.order {
		if existing == v {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.persistLocked()
}

// Contains reports whether v has been added.
func (s *Set) Contains(v string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[v]
	return ok
}

// Values returns every member, in insertion order.
func (s *Set) Values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of members.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
