package store

import (
	"context"

	"github.com/bothub-it/bothub-nlp/internal/profile"
)

// Store provides access to the origin store of bot definitions.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateBotDefinition(ctx context.Context, create *BotDefinition) (*BotDefinition, error) {
	return s.driver.CreateBotDefinition(ctx, create)
}

// GetBotDefinition returns the definition for a session key, or nil when the
// origin store has none.
func (s *Store) GetBotDefinition(ctx context.Context, find *FindBotDefinition) (*BotDefinition, error) {
	list, err := s.driver.ListBotDefinitions(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) ListBotDefinitions(ctx context.Context, find *FindBotDefinition) ([]*BotDefinition, error) {
	return s.driver.ListBotDefinitions(ctx, find)
}

func (s *Store) DeleteBotDefinition(ctx context.Context, delete *DeleteBotDefinition) error {
	return s.driver.DeleteBotDefinition(ctx, delete)
}
