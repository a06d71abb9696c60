package kv

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MockStore wraps the in-memory store with switchable write failures so tests
// can exercise registry error paths.
type MockStore struct {
	Store

	mu         sync.Mutex
	failSet    bool
	failSetAdd bool
	failDelete bool

	// SetCalls records keys passed to Set, in order.
	SetCalls []string
}

// NewMockStore creates a MockStore backed by a fresh memory store.
func NewMockStore() *MockStore {
	return &MockStore{Store: NewMemoryStore()}
}

// FailSet makes subsequent Set calls fail.
func (m *MockStore) FailSet(fail bool) {
	m.mu.Lock()
	m.failSet = fail
	m.mu.Unlock()
}

// FailSetAdd makes subsequent SetAdd calls fail.
func (m *MockStore) FailSetAdd(fail bool) {
	m.mu.Lock()
	m.failSetAdd = fail
	m.mu.Unlock()
}

// FailDelete makes subsequent Delete calls fail.
func (m *MockStore) FailDelete(fail bool) {
	m.mu.Lock()
	m.failDelete = fail
	m.mu.Unlock()
}

func (m *MockStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	fail := m.failSet
	m.SetCalls = append(m.SetCalls, key)
	m.mu.Unlock()
	if fail {
		return errors.New("injected set failure")
	}
	return m.Store.Set(ctx, key, value, ttl)
}

func (m *MockStore) SetAdd(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	fail := m.failSetAdd
	m.mu.Unlock()
	if fail {
		return errors.New("injected set-add failure")
	}
	return m.Store.SetAdd(ctx, key, members...)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	fail := m.failDelete
	m.mu.Unlock()
	if fail {
		return errors.New("injected delete failure")
	}
	return m.Store.Delete(ctx, key)
}
