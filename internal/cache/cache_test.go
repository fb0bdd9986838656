package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKVAddGetReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kv.txt")

	c, err := NewKV(path, 10)
	require.NoError(t, err)
	require.NoError(t, c.Add("7", "42"))

	reloaded, err := NewKV(path, 10)
	require.NoError(t, err)
	v, ok := reloaded.Get("7")
	require.True(t, ok)
	require.Equal(t, "42", v)
}

func TestKVEvictsOldestAtCapacity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kv.txt")

	c, err := NewKV(path, 2)
	require.NoError(t, err)
	require.NoError(t, c.Add("a", "1"))
	require.NoError(t, c.Add("b", "2"))
	require.NoError(t, c.Add("c", "3"))

	require.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	require.False(t, ok, "oldest entry should have been evicted")
	v, ok := c.Get("c")
	require.True(t, ok)
	require.Equal(t, "3", v)
}

func TestKVGetKeyForValue(t *testing.T) {
	dir := t.TempDir()
	c, err := NewKV(filepath.Join(dir, "kv.txt"), 10)
	require.NoError(t, err)
	require.NoError(t, c.Add("dp-1", "order-9"))

	key, ok := c.GetKeyForValue("order-9")
	require.True(t, ok)
	require.Equal(t, "dp-1", key)
}

func TestSetAddIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSet(filepath.Join(dir, "set.txt"), 10)
	require.NoError(t, err)
	require.NoError(t, s.Add("abc"))
	require.NoError(t, s.Add("abc"))
	require.Equal(t, 1, s.Len())
	require.True(t, s.Contains("abc"))
}

func TestTimestampedSetRefreshesTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ts.txt")
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	s, err := newTimestampedSet(path, 10, clock)
	require.NoError(t, err)
	require.NoError(t, s.Add("cid-1"))
	ts1, ok := s.GetTimestamp("cid-1")
	require.True(t, ok)
	require.Equal(t, int64(1000), ts1)

	now = time.Unix(2000, 0)
	require.NoError(t, s.Add("cid-1"))
	require.Equal(t, 1, s.Len(), "second add must not duplicate the entry")

	ts2, ok := s.GetTimestamp("cid-1")
	require.True(t, ok)
	require.Equal(t, int64(2000), ts2)
}

func TestTimestampedSetEvictsFIFO(t *testing.T) {
	dir := t.TempDir()
	s, err := newTimestampedSet(filepath.Join(dir, "ts.txt"), 2, time.Now)
	require.NoError(t, err)
	require.NoError(t, s.Add("a"))
	require.NoError(t, s.Add("b"))
	require.NoError(t, s.Add("c"))

	require.Equal(t, 2, s.Len())
	require.False(t, s.Contains("a"))
	require.True(t, s.Contains("c"))
}

func TestTimestampedSetMigratesLegacyList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ts.txt")

	legacy, err := json.Marshal([]string{"cid-a", "cid-b"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, legacy, 0o644))

	fixedNow := time.Unix(5000, 0)
	s, err := newTimestampedSet(path, 10, func() time.Time { return fixedNow })
	require.NoError(t, err)

	require.True(t, s.Contains("cid-a"))
	require.True(t, s.Contains("cid-b"))
	ts, ok := s.GetTimestamp("cid-a")
	require.True(t, ok)
	require.Equal(t, int64(5000), ts)

	// The migration must have rewritten the file in the current format.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var asObject map[string]tsEntry
	require.NoError(t, json.Unmarshal(raw, &asObject))
	require.Len(t, asObject, 2)
}

func TestAppendListRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merged.json")

	l, err := NewAppendList(path, 10)
	require.NoError(t, err)
	require.NoError(t, l.Append(MergedOrder{DORequestID: 1, DPRequestID: 2, OrderID: 3}))

	reloaded, err := NewAppendList(path, 10)
	require.NoError(t, err)
	require.Equal(t, []MergedOrder{{DORequestID: 1, DPRequestID: 2, OrderID: 3}}, reloaded.Entries())
}

func TestMissingFileLoadsAsEmpty(t *testing.T) {
	dir := t.TempDir()
	c, err := NewKV(filepath.Join(dir, "does-not-exist.txt"), 10)
	require.NoError(t, err)
	require.Equal(t, 0, c.Len())
}

func TestCorruptFileLoadsAsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.txt")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c, err := NewKV(path, 10)
	require.NoError(t, err)
	require.Equal(t, 0, c.Len())
}
