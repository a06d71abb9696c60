package kv

import (
	"context"
	"sync"
	"time"
)

// memoryStore is an in-process Store used for single-node deployments and
// tests. Expiry is checked lazily on read; there is no background reaper,
// which is fine for the handful of registry keys a single instance holds.
type memoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryValue
	sets   map[string]*memorySet

	// now is swappable so tests can step time.
	now func() time.Time
}

type memoryValue struct {
	data      []byte
	expiresAt time.Time // zero = no expiry
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time // zero = no expiry
}

// NewMemoryStore creates an in-memory coordination store.
func NewMemoryStore() Store {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an in-memory store on a caller-supplied
// clock, so tests can step time past TTLs.
func NewMemoryStoreWithClock(now func() time.Time) Store {
	return &memoryStore{
		values: make(map[string]memoryValue),
		sets:   make(map[string]*memorySet),
		now:    now,
	}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	v, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !v.expiresAt.IsZero() && m.now().After(v.expiresAt) {
		m.mu.Lock()
		delete(m.values, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(v.data))
	copy(out, v.data)
	return out, true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)
	v := memoryValue{data: data}
	if ttl > 0 {
		v.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.values[key] = v
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	delete(m.sets, key)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) SetAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.liveSet(key)
	if set == nil {
		set = &memorySet{members: make(map[string]struct{})}
		m.sets[key] = set
	}
	for _, member := range members {
		set.members[member] = struct{}{}
	}
	return nil
}

func (m *memoryStore) SetRemove(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.liveSet(key)
	if set == nil {
		return nil
	}
	for _, member := range members {
		delete(set.members, member)
	}
	return nil
}

func (m *memoryStore) SetMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.liveSet(key)
	if set == nil {
		return []string{}, nil
	}
	members := make([]string, 0, len(set.members))
	for member := range set.members {
		members = append(members, member)
	}
	return members, nil
}

func (m *memoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		v.expiresAt = m.now().Add(ttl)
		m.values[key] = v
	}
	if set := m.liveSet(key); set != nil {
		set.expiresAt = m.now().Add(ttl)
	}
	return nil
}

// liveSet returns the set at key, dropping it first if its TTL has lapsed.
// Callers must hold the write lock.
func (m *memoryStore) liveSet(key string) *memorySet {
	set, ok := m.sets[key]
	if !ok {
		return nil
	}
	if !set.expiresAt.IsZero() && m.now().After(set.expiresAt) {
		delete(m.sets, key)
		return nil
	}
	return set
}

func (m *memoryStore) Close() error {
	return nil
}
