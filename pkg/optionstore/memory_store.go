package optionstore

import (
	"context"
	"sort"
	"sync"

	"github.com/goliatone/go-settings/layering"
)

// MemoryStore is an in-memory Store intended for tests, examples and the CLI
// when no database is configured. Values are deep-copied on the way in and
// out so callers never share maps with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	writes  []string
}

type memoryRecord struct {
	value    any
	autoload bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}}
}

// Seed stores value under name with autoload enabled. It is meant for test
// setup and ignores empty names.
func (s *MemoryStore) Seed(name string, value any) *MemoryStore {
	if name == "" {
		return s
	}
	s.mu.Lock()
	s.records[name] = memoryRecord{value: layering.Clone(value), autoload: true}
	s.mu.Unlock()
	return s
}

func (s *MemoryStore) Get(_ context.Context, name string) (any, bool, error) {
	if name == "" {
		return nil, false, ErrNameRequired
	}
	s.mu.RLock()
	record, ok := s.records[name]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return layering.Clone(record.value), true, nil
}

func (s *MemoryStore) Set(_ context.Context, name string, value any, autoload bool) error {
	if name == "" {
		return ErrNameRequired
	}
	s.mu.Lock()
	s.records[name] = memoryRecord{value: layering.Clone(value), autoload: autoload}
	s.writes = append(s.writes, name)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	if name == "" {
		return ErrNameRequired
	}
	s.mu.Lock()
	delete(s.records, name)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadAutoloaded(context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any)
	for name, record := range s.records {
		if record.autoload {
			out[name] = layering.Clone(record.value)
		}
	}
	return out, nil
}

// Autoload reports the autoload hint stored with name.
func (s *MemoryStore) Autoload(name string) (autoload bool, ok bool) {
	s.mu.RLock()
	record, ok := s.records[name]
	s.mu.RUnlock()
	return record.autoload, ok
}

// Names returns the stored record names in lexical order.
func (s *MemoryStore) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Writes returns the record names passed to Set, in call order.
func (s *MemoryStore) Writes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.writes...)
}
