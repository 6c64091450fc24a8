// CLAUDE:SUMMARY Image description cache contract (lookup/store, first-write-wins) with an in-memory implementation.
// Package describe holds the image-reference to description cache and the
// resolver that consults it before any description is generated.
package describe

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
)

// ErrEmpty is returned when storing an empty reference or description.
var ErrEmpty = errors.New("describe: empty reference or description")

// Cache maps an image reference to its description. At most one description
// exists per reference: Store on a reference that already has one is a no-op.
type Cache interface {
	Lookup(ctx context.Context, ref string) (string, bool, error)
	Store(ctx context.Context, ref, description string) error
}

// Map is an in-memory Cache safe for concurrent use.
type Map struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMap returns a Map seeded with entries.
func NewMap(entries map[string]string) *Map {
	m := &Map{m: make(map[string]string, len(entries))}
	for k, v := range entries {
		if k != "" && strings.TrimSpace(v) != "" {
			m.m[k] = v
		}
	}
	return m
}

func (m *Map) Lookup(_ context.Context, ref string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.m[ref]
	return d, ok, nil
}

func (m *Map) Store(_ context.Context, ref, description string) error {
	if ref == "" || strings.TrimSpace(description) == "" {
		return ErrEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.m == nil {
		m.m = make(map[string]string)
	}
	if _, exists := m.m[ref]; !exists {
		m.m[ref] = description
	}
	return nil
}

// Len returns the number of entries.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

// Snapshot returns a copy of every entry.
func (m *Map) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.m)
}
