package cache

import (
	"bytes"
	"encoding/json"
	"sync"
)

// KV is an ordered key→value string map. Insertion order is preserved so
// that, once the map exceeds its limit, Add can evict the oldest entry
//. It persists as a flat JSON object; key order on disk is
// reconstructed from the file's own token order on load so restarts see
// the same eviction candidate they would have seen pre-restart.
type KV struct {
	mu    sync.Mutex
	path  string
	limit int

	order []string
	data  map[string]string
}

// NewKV opens (or creates) a KV cache backed by path, bounded to limit
// entries.
func NewKV(path string, limit int) (*KV, error) {
	c := &KV{path: path, limit: limit, data: make(map[string]string)}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *KV) load() error {
	raw, err := readFileOrEmpty(c.path)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	order, data, ok := decodeOrderedObject(raw)
	if !ok {
		// Corrupt file: failure semantics, treat as empty store.
		return nil
	}
	c.order = order
	c.data = data
	return nil
}

// decodeOrderedObject decodes a JSON object of string->string while
// preserving the order keys appeared in the source bytes, since
// encoding/json's map decoding does not.
func decodeOrderedObject(raw []byte) ([]string, map[string]string, bool) {
	order, ok := orderedObjectKeys(raw)
	if !ok {
		return nil, nil, false
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, nil, false
	}
	return order, data, true
}

func (c *KV) persistLocked() error {
	buf := bytes.NewBufferString("{")
	for i, key := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(key)
		valJSON, _ := json.Marshal(c.data[key])
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return atomicWriteFile(c.path, buf.Bytes())
}

// Add inserts or updates key. Once the map holds more than limit entries,
// the oldest (by insertion order) is evicted.
func (c *KV) Add(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists {
		c.order = append(c.order, key)
	}
	c.data[key] = value

	for c.limit > 0 && len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.data, oldest)
	}

	return c.persistLocked()
}

// Get returns the value for key, or ("", false) if absent.
func (c *KV) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

// GetKeyForValue returns the first key (in insertion order) mapped to
// value, or ("", false) if none match.
func (c *KV) GetKeyForValue(value string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.order {
		if c.data[k] == value {
			return k, true
		}
	}
	return "", false
}

// Values returns every currently cached value, in insertion order.
func (c *KV) Values() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.data[k])
	}
	return out
}

// Remove deletes key if present.
func (c *KV) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[key]; !exists {
		return nil
	}
	delete(c.data, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return c.persistLocked()
}

// Wipe clears the cache and rewrites an empty file.
func (c *KV) Wipe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.data = make(map[string]string)
	return c.persistLocked()
}

// Len returns the number of cached entries.
func (c *KV) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
