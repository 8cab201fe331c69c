// Package backend assembles a storage backend and optional message
// publisher from configuration. Both the API server and the worker go
// through it so backend selection behaves identically in each.
package backend

import (
	"paycal/internal/amqp"
	"paycal/internal/store"
)

// Store is the full storage surface a backend provides: calendar data,
// balance snapshots and scope enumeration.
type Store interface {
	store.Repository
	store.SnapshotRepository
	store.Scoper
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result holds the assembled backend. AMQP is nil when no broker is
// configured or the broker is unreachable.
type Result struct {
	Store   Store
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Type selects the storage backend.
type Type string

const (
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	return t == MemoryBackend || t == SQLiteBackend
}
