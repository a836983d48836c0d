package storage

import (
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

// Storage is the interface for all output backends.
type Storage interface {
	// Store persists a batch of records.
	Store(records []types.NewsRecord) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}
