package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// tsEntry is the persisted shape of one timestamped-set member.
type tsEntry struct {
	Timestamp int64 `json:"timestamp"`
}

// TimestampedSet maps values to the wall-clock time they were added (or
// last refreshed). Eviction is FIFO by insertion order once the set
// exceeds its limit; GetTimestamp feeds the weekly content-GC
// age check.
type TimestampedSet struct {
	mu    sync.Mutex
	path  string
	limit int
	now   func() time.Time

	order []string
	data  map[string]tsEntry
}

// NewTimestampedSet opens (or creates, or migrates) a timestamped-set
// cache backed by path.
func NewTimestampedSet(path string, limit int) (*TimestampedSet, error) {
	return newTimestampedSet(path, limit, time.Now)
}

// newTimestampedSet is the test-visible constructor with an injectable
// clock.
func newTimestampedSet(path string, limit int, now func() time.Time) (*TimestampedSet, error) {
	s := &TimestampedSet{path: path, limit: limit, now: now, data: make(map[string]tsEntry)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TimestampedSet) load() error {
	raw, err := readFileOrEmpty(s.path)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	// Current format: ordered object of value -> {timestamp}.
	order, entries, ok := decodeOrderedTimestamped(raw)
	if ok {
		s.order = order
		s.data = entries
		return nil
	}

	// Legacy format: a plain JSON list of values with no timestamps. Every
	// element migrates to {timestamp: now}, and the file is rewritten in
	// the current format before this constructor returns.
	var legacyList []string
	if err := json.Unmarshal(raw, &legacyList); err != nil {
		// Corrupt file: treat as empty store.
		return nil
	}
	now := s.now().Unix()
	for _, v := range legacyList {
		if _, exists := s.data[v]; exists {
			continue
		}
		s.order = append(s.order, v)
		s.data[v] = tsEntry{Timestamp: now}
	}
	return s.persistLocked()
}

func decodeOrderedTimestamped(raw []byte) ([]string, map[string]tsEntry, bool) {
	order, ok := orderedObjectKeys(raw)
	if !ok {
		return nil, nil, false
	}
	var entries map[string]tsEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, false
	}
	// A legacy plain list also unmarshals into an empty object map without
	// error only if raw is "{}"; any real legacy list is rejected by
	// orderedObjectKeys above since it starts with '[' not '{'.
	return order, entries, true
}

func (s *TimestampedSet) persistLocked() error {
	out := make(map[string]tsEntry, len(s.order))
	for _, v := range s.order {
		out[v] = s.data[v]
	}
	// Marshal by hand to preserve insertion order on disk, same rationale
	// as KV.persistLocked.
	var b []byte
	b = append(b, '{')
	for i, v := range s.order {
		if i > 0 {
			b = append(b, ',')
		}
		keyJSON, _ := json.Marshal(v)
		valJSON, _ := json.Marshal(out[v])
		b = append(b, keyJSON...)
		b = append(b, ':')
		b = append(b, valJSON...)
	}
	b = append(b, '}')
	return atomicWriteFile(s.path, b)
}

// Add stamps v with the current time, refreshing an existing entry's
// timestamp instead of duplicating it.
func (s *TimestampedSet) Add(v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[v]; !exists {
		s.order = append(s.order, v)
	}
	s.data[v] = tsEntry{Timestamp: s.now().Unix()}

	for s.limit > 0 && len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.data, oldest)
	}

	return s.persistLocked()
}

// Remove deletes v if present.
func (s *TimestampedSet) Remove(v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[v]; !exists {
		return nil
	}
	delete(s.data, v)
	for i, k := range s.order {
		if k == v {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.persistLocked()
}

// Contains reports whether v is a current member.
func (s *TimestampedSet) Contains(v string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[v]
	return ok
}

// GetTimestamp returns the unix timestamp v was added/refreshed at.
func (s *TimestampedSet) GetTimestamp(v string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[v]
	return e.Timestamp, ok
}

// Values returns every member, in insertion order.
func (s *TimestampedSet) Values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of members.
func (s *TimestampedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
