package describe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// JSONFile is a Cache persisted as a JSON object keyed by image reference.
// Values may be plain strings or objects carrying a "description" field
// (and an optional "local_path"). Flush rewrites the file atomically.
type JSONFile struct {
	path string
	mem  *Map

	mu    sync.Mutex
	paths map[string]string
	dirty bool
}

type fileEntry struct {
	LocalPath   string `json:"local_path,omitempty"`
	Description string `json:"description"`
}

// OpenJSONFile loads path. A missing file yields an empty cache.
func OpenJSONFile(path string) (*JSONFile, error) {
	f := &JSONFile{path: path, mem: NewMap(nil), paths: make(map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("describe: read %s: %w", path, err)
	}
	entries, paths, err := decodeFile(data)
	if err != nil {
		return nil, fmt.Errorf("describe: decode %s: %w", path, err)
	}
	f.mem = NewMap(entries)
	f.paths = paths
	return f, nil
}

// DecodeJSON parses the cache file format into reference/description pairs.
func DecodeJSON(data []byte) (map[string]string, error) {
	entries, _, err := decodeFile(data)
	return entries, err
}

func decodeFile(data []byte) (map[string]string, map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}
	entries := make(map[string]string, len(raw))
	paths := make(map[string]string)
	for ref, v := range raw {
		var s string
		if json.Unmarshal(v, &s) == nil {
			entries[ref] = s
			continue
		}
		var e fileEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return nil, nil, fmt.Errorf("entry %q: %w", ref, err)
		}
		entries[ref] = e.Description
		if e.LocalPath != "" {
			paths[ref] = e.LocalPath
		}
	}
	return entries, paths, nil
}

func (f *JSONFile) Lookup(ctx context.Context, ref string) (string, bool, error) {
	return f.mem.Lookup(ctx, ref)
}

func (f *JSONFile) Store(ctx context.Context, ref, description string) error {
	if _, ok, _ := f.mem.Lookup(ctx, ref); ok {
		return nil
	}
	if err := f.mem.Store(ctx, ref, description); err != nil {
		return err
	}
	f.mu.Lock()
	f.dirty = true
	f.mu.Unlock()
	return nil
}

// Entries returns a copy of every cached description.
func (f *JSONFile) Entries() map[string]string { return f.mem.Snapshot() }

// Flush writes the cache to disk if it changed since the last load or flush.
func (f *JSONFile) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirty {
		return nil
	}
	out := make(map[string]fileEntry)
	for ref, d := range f.mem.Snapshot() {
		out[ref] = fileEntry{LocalPath: f.paths[ref], Description: d}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("describe: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("describe: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".cache-*.json")
	if err != nil {
		return fmt.Errorf("describe: flush: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("describe: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("describe: flush: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("describe: flush: %w", err)
	}
	f.dirty = false
	return nil
}
