// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Package store defines the storage contracts of the broker: queues,
// messages, claims, counters and the pool/catalogue control plane. Each
// backend provides one implementation of every contract; the pooling router
// is itself an implementation that delegates per queue.
package store

import (
	"context"
	"time"
)

// Sort orders for Messages.First.
const (
	SortAscending  = 1
	SortDescending = -1
)

// DB aggregates the storage contracts of one backend.
type DB interface {
	Queues() Queues
	Messages() Messages
	Claims() Claims
	Counters() Counters
	Pools() Pools
	Catalogue() Catalogue

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Counters assigns per-queue monotonic sequence numbers.
//
// A freshly created queue has counter value 1; the first increment yields 2,
// which becomes the marker of the first message posted.
type Counters interface {
	// Get returns the current counter value for the queue.
	Get(ctx context.Context, project, queue string) (int64, error)

	// Increment atomically adds amount to the counter and returns the new
	// value. When window is positive the increment only happens if at
	// least window has elapsed since the last modification; otherwise ok
	// is false and the counter is untouched.
	Increment(ctx context.Context, project, queue string, amount int64, window time.Duration) (value int64, ok bool, err error)
}
