package optionstore

import (
	"context"
	"errors"
)

// ErrNameRequired is returned when a record name is empty.
var ErrNameRequired = errors.New("optionstore: record name is required")

// Store reads and writes option records.
type Store interface {
	// Get returns the stored value for name. ok is false when no record exists.
	Get(ctx context.Context, name string) (value any, ok bool, err error)
	// Set replaces the record stored under name.
	Set(ctx context.Context, name string, value any, autoload bool) error
}

// Autoloader is implemented by stores able to return every record flagged
// for autoload in one call.
type Autoloader interface {
	LoadAutoloaded(ctx context.Context) (map[string]any, error)
}

// Deleter is implemented by stores that support record removal.
type Deleter interface {
	Delete(ctx context.Context, name string) error
}
