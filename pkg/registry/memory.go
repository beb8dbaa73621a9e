package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local rendering.
//
// Records are lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*Record // name -> version -> record
	ids     IDGenerator
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type MemoryOption func(*MemoryStore)

func WithMemoryIDs(ids IDGenerator) MemoryOption {
	return func(m *MemoryStore) {
		if ids != nil {
			m.ids = ids
		}
	}
}

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		records: map[string]map[string]*Record{},
		ids:     ULIDs,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *MemoryStore) Put(_ context.Context, rec *Record) (string, error) {
	if err := prepareRecord(rec, m.ids, m.now()); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.records[rec.Name]
	if versions == nil {
		versions = map[string]*Record{}
		m.records[rec.Name] = versions
	}
	if _, exists := versions[rec.Version]; exists {
		return "", fmt.Errorf("registry: version %s of %s already exists", rec.Version, rec.Name)
	}
	versions[rec.Version] = cloneRecord(rec)
	return rec.Version, nil
}

func (m *MemoryStore) Get(_ context.Context, name, version string) (*Record, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if version, err = validateVersion(version); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[name][version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, name, version)
	}
	return cloneRecord(rec), nil
}

func (m *MemoryStore) Latest(ctx context.Context, name string) (*Record, error) {
	out, err := m.List(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return out[0], nil
}

func (m *MemoryStore) List(_ context.Context, name string, limit int) ([]*Record, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.records[name]
	keys := make([]string, 0, len(versions))
	for v := range versions {
		keys = append(keys, v)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	limit = normalizeLimit(limit)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]*Record, 0, len(keys))
	for _, v := range keys {
		out = append(out, cloneRecord(versions[v]))
	}
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, name, version string) error {
	name, err := validateName(name)
	if err != nil {
		return err
	}
	if version, err = validateVersion(version); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[name][version]; !ok {
		return fmt.Errorf("%w: %s@%s", ErrNotFound, name, version)
	}
	delete(m.records[name], version)
	if len(m.records[name]) == 0 {
		delete(m.records, name)
	}
	return nil
}
