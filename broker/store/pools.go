// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package store

import "context"

// Pool describes one backend shard available for queue placement.
type Pool struct {
	ID string

	// URI is an openable store URL, for example bolt:///path/to/db.
	URI string

	// Weight drives placement probability; zero-weight pools are only
	// eligible when every pool has weight zero.
	Weight int

	// Group optionally tags pools for operator bookkeeping.
	Group string
}

// CatalogueEntry maps a queue to the pool that stores it.
type CatalogueEntry struct {
	Project string
	Queue   string
	PoolID  string
}

// Pools is the registry of backend shards. Control-plane only; the pooling
// router never routes these calls.
type Pools interface {
	// Register adds or replaces a pool entry.
	Register(ctx context.Context, pool *Pool) error

	// Get returns the pool or ErrPoolDoesNotExist.
	Get(ctx context.Context, id string) (*Pool, error)

	// List returns all pools ordered by id.
	List(ctx context.Context) ([]*Pool, error)

	// Remove deletes the pool entry; missing ids succeed.
	Remove(ctx context.Context, id string) error
}

// Catalogue persists queue placement decisions. Entries are stable for the
// queue's lifetime.
type Catalogue interface {
	// Insert records the placement, replacing any previous entry.
	Insert(ctx context.Context, project, queue, poolID string) error

	// Get returns the pool id for the queue; ok is false when no entry
	// exists.
	Get(ctx context.Context, project, queue string) (poolID string, ok bool, err error)

	// List returns the project's entries ordered by queue name.
	List(ctx context.Context, project string) ([]*CatalogueEntry, error)

	// Delete removes the entry; missing entries succeed.
	Delete(ctx context.Context, project, queue string) error

	// DropAll clears the catalogue.
	DropAll(ctx context.Context) error
}
