package settings

import (
	"errors"
	"fmt"
)

var (
	ErrNamespaceRequired = errors.New("settings: namespace is required")
	ErrStoreRequired     = errors.New("settings: option store is required")
	ErrPageIDRequired    = errors.New("settings: page id is required")
	ErrDuplicatePage     = errors.New("settings: page already registered")
	ErrTabNotFound       = errors.New("settings: tab not found")
	ErrSectionNotFound   = errors.New("settings: section not found")
	ErrNoTabs            = errors.New("settings: no tabs defined")
	ErrSaveNotPermitted  = errors.New("settings: save not permitted")
)

// SaveError reports an option store write that failed during a save.
// Records staged before the failing one have already been written.
type SaveError struct {
	Record string
	Op     string
	Err    error
}

func (e *SaveError) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := e.Op
	if op == "" {
		op = "write"
	}
	return fmt.Sprintf("settings: %s record %q: %v", op, e.Record, e.Err)
}

func (e *SaveError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
