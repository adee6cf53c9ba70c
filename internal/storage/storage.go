package storage

import (
	"context"
	"fmt"
)

// Store is an ordered key-value store. EachItem visits pairs in the order
// keys were first written; overwriting a key keeps its position.
type Store interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	// EachItem stops at the first error returned by fn and returns it.
	EachItem(ctx context.Context, fn func(key, value string) error) error
	Count(ctx context.Context) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for the named driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
