// Package cache implements the three persistent cache flavors the node
// needs: an ordered key→value map, a bounded set of identifiers, and a set
// with per-entry timestamps. All three are backed by a single JSON file
// that is rewritten in full on every mutation (write-temp, fsync, rename),
// never appended to in place, so a crash mid-write never corrupts the
// previous generation.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// orderedObjectKeys walks a JSON object's tokens to recover the key order
// it was written in, since encoding/json's map decoding does not preserve
// source order. Returns ok=false if raw is not a JSON object.
func orderedObjectKeys(raw []byte) (order []string, ok bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	delim, isDelim := tok.(json.Delim)
	if !isDelim || delim != '{' {
		return nil, false
	}

	seen := make(map[string]struct{})
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, isString := keyTok.(string)
		if !isString {
			return nil, false
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false
		}
		if _, dup := seen[key]; !dup {
			order = append(order, key)
			seen[key] = struct{}{}
		}
	}
	return order, true
}

// atomicWriteFile writes data to path by staging it in a sibling temp
// file, fsyncing it, then renaming over the destination. Rename is atomic
// on POSIX filesystems, so readers never observe a partially written file.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("cache: create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: write temp file %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: fsync temp file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: close temp file %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}

// readFileOrEmpty returns the file's contents, or nil with no error if the
// file does not exist. A missing or
// corrupt file is treated as an empty store by the caller, not an error
// here; read errors other than "not exist" are still propagated so a
// permissions problem is not silently swallowed.
func readFileOrEmpty(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: read %s: %w", path, err)
	}
	return data, nil
}
