package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MockDriver is an in-memory Driver for tests. It supports forced failures so
// callers can prove they never reach the origin tier.
type MockDriver struct {
	mu     sync.Mutex
	byKey  map[string]*BotDefinition
	nextID int32

	// Fail makes every operation return an error.
	Fail bool

	// FetchCalls counts definition lookups.
	FetchCalls int
}

// NewMockDriver creates an empty in-memory driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{byKey: make(map[string]*BotDefinition)}
}

func (d *MockDriver) GetDB() *sql.DB { return nil }

func (d *MockDriver) Close() error { return nil }

func (d *MockDriver) Migrate(_ context.Context) error { return nil }

func (d *MockDriver) CreateBotDefinition(_ context.Context, create *BotDefinition) (*BotDefinition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail {
		return nil, errors.New("injected origin failure")
	}
	d.nextID++
	create.ID = d.nextID
	now := time.Now().Unix()
	create.CreatedTs = now
	create.UpdatedTs = now
	d.byKey[create.SessionKey] = create
	return create, nil
}

func (d *MockDriver) ListBotDefinitions(_ context.Context, find *FindBotDefinition) ([]*BotDefinition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail {
		return nil, errors.New("injected origin failure")
	}
	d.FetchCalls++
	if find.SessionKey != nil {
		if def, ok := d.byKey[*find.SessionKey]; ok {
			return []*BotDefinition{def}, nil
		}
		return nil, nil
	}
	list := make([]*BotDefinition, 0, len(d.byKey))
	for _, def := range d.byKey {
		list = append(list, def)
	}
	return list, nil
}

func (d *MockDriver) DeleteBotDefinition(_ context.Context, del *DeleteBotDefinition) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail {
		return errors.New("injected origin failure")
	}
	delete(d.byKey, del.SessionKey)
	return nil
}
