package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// BotDefinition model related methods.
	CreateBotDefinition(ctx context.Context, create *BotDefinition) (*BotDefinition, error)
	ListBotDefinitions(ctx context.Context, find *FindBotDefinition) ([]*BotDefinition, error)
	DeleteBotDefinition(ctx context.Context, delete *DeleteBotDefinition) error
}
