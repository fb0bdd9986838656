package cache

import (
	"encoding/json"
	"sync"
)

// MergedOrder is one historical {do, dp, order} tuple recorded for
// external audit.
type MergedOrder struct {
	DORequestID uint64 `json:"do_req_id"`
	DPRequestID uint64 `json:"dp_req_id"`
	OrderID     uint64 `json:"order_id"`
}

// AppendList is a bounded, append-on-write JSON array, used for the
// merged-orders audit ledger. Like the other cache flavors it rewrites the
// whole file on every mutation rather than appending bytes in place, so a
// crash mid-write cannot leave a half-written JSON array on disk.
type AppendList struct {
	mu    sync.Mutex
	path  string
	limit int

	entries []MergedOrder
}

// NewAppendList opens (or creates) an append-list cache backed by path.
func NewAppendList(path string, limit int) (*AppendList, error) {
	l := &AppendList{path: path, limit: limit}
	raw, err := readFileOrEmpty(path)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		// Corrupt file: treat as empty store.
		_ = json.Unmarshal(raw, &l.entries)
	}
	return l, nil
}

// Append records a new entry, evicting the oldest once the ledger exceeds
// its limit.
func (l *AppendList) Append(entry MergedOrder) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if l.limit > 0 && len(l.entries) > l.limit {
		l.entries = l.entries[len(l.entries)-l.limit:]
	}

	data, err := json.Marshal(l.entries)
	if err != nil {
		return err
	}
	return atomicWriteFile(l.path, data)
}

// Entries returns a copy of every recorded entry, oldest first.
func (l *AppendList) Entries() []MergedOrder {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]MergedOrder, len(l.entries))
	copy(out, l.entries)
	return out
}
