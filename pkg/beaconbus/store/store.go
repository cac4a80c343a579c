// Package store persists the beacon configurations a manager holds.
package store

import (
	"errors"
	"time"
)

// Store persists beacon configurations keyed by minion and beacon name.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores data for (minionID, name), overwriting any existing entry.
	// An overwrite keeps the entry's original position.
	Save(minionID, name string, data []byte) error

	// Load retrieves an entry.
	// Returns ErrNotFound if it doesn't exist.
	Load(minionID, name string) ([]byte, error)

	// List returns all entries for a minion in the order they were first saved.
	// Returns empty slice (not error) if the minion has none.
	List(minionID string) ([]Info, error)

	// Delete removes an entry.
	// Returns nil if it doesn't exist.
	Delete(minionID, name string) error

	// DeleteAll removes all entries for a minion.
	DeleteAll(minionID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info describes a stored entry without its data.
type Info struct {
	MinionID  string
	Name      string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates an entry doesn't exist.
	ErrNotFound = errors.New("beacon not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("beacon store closed")
)
