// Package persist provides pluggable storage backends for simulation
// checkpoint dumps and run manifests.
//
// A Backend is a flat, opaque blob store keyed by path-shaped strings (the
// same keys the checkpoint runner already computes for its on-disk layout,
// e.g. "runs/<runId>/dumps/3-t1200.json" or "runs/<runId>/run.json"). This lets a run target a local
// filesystem, a database, or an in-memory store interchangeably without the
// runner knowing which.
//
// Implementations:
//   - MemBackend: in-process, for tests and short-lived runs (memory.go).
//   - SQLiteBackend: single-file database, zero setup (sqlite.go).
//   - MySQLBackend: relational, for shared/production deployments (mysql.go).
package persist

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested key does not exist in a Backend.
var ErrNotFound = errors.New("persist: not found")

// Backend persists and retrieves opaque blobs (checkpoint dumps, run
// manifests) keyed by string. Implementations must make Put durable before
// returning: the runner treats a successful Put as "this dump will survive a
// crash".
type Backend interface {
	// Put durably writes data under key, replacing any prior value.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the bytes stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns every key currently stored with the given prefix, in no
	// particular order. Used to recover a run's dump sequence when a
	// manifest is missing or stale.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources (connections, file handles) held by the
	// backend.
	Close() error
}
