// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package store

import (
	"context"
	"time"
)

// Queue is a named message queue scoped to a project.
type Queue struct {
	Project   string
	Name      string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// QueuePage is one page of a queue listing, ordered by name.
type QueuePage struct {
	Queues []*Queue

	// NextMarker is the name of the last queue on the page, empty when
	// the listing is exhausted.
	NextMarker string
}

// MessageRef points at the oldest or newest message in queue stats.
type MessageRef struct {
	ID        string
	Age       int64
	CreatedAt time.Time
}

// QueueStats summarizes a queue's visible backlog.
type QueueStats struct {
	Free    int64
	Claimed int64
	Total   int64

	// Oldest and Newest are nil when the queue holds no visible messages.
	Oldest *MessageRef
	Newest *MessageRef
}

// Queues manages queue lifecycle and metadata.
type Queues interface {
	// Create makes the queue if it does not exist, initializing its
	// counter to 1. It reports whether the queue was newly created and
	// replaces metadata when it already existed.
	Create(ctx context.Context, project, name string, metadata map[string]interface{}) (created bool, err error)

	// Get returns the queue or ErrQueueDoesNotExist.
	Get(ctx context.Context, project, name string) (*Queue, error)

	// SetMetadata replaces the metadata blob of an existing queue.
	SetMetadata(ctx context.Context, project, name string, metadata map[string]interface{}) error

	// Exists reports whether the queue exists.
	Exists(ctx context.Context, project, name string) (bool, error)

	// List pages through the project's queues in name order, starting
	// after marker.
	List(ctx context.Context, project, marker string, limit int) (*QueuePage, error)

	// Delete removes the queue together with its messages, claims and
	// counter. Deleting a missing queue succeeds.
	Delete(ctx context.Context, project, name string) error

	// Stats returns backlog counts and oldest/newest refs, or
	// ErrQueueDoesNotExist.
	Stats(ctx context.Context, project, name string) (*QueueStats, error)
}
