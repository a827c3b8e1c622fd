// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is a queued document.
type Message struct {
	ID      string
	Project string
	Queue   string

	// Body is an arbitrary decoded document.
	Body interface{}

	// TTL is the lifetime in seconds from CreatedAt; claim grace periods
	// extend it in place.
	TTL       int
	CreatedAt time.Time

	// Marker is the queue-local monotonic sequence number.
	Marker uint64

	// ClientID identifies the producer, for echo filtering.
	ClientID uuid.UUID

	// ClaimID and ClaimExpiresAt are set while a live claim holds the
	// message.
	ClaimID        string
	ClaimExpiresAt time.Time
}

// Age returns the message age in whole seconds at the given time.
func (m *Message) Age(now time.Time) int64 {
	age := int64(now.Sub(m.CreatedAt) / time.Second)
	if age < 0 {
		return 0
	}
	return age
}

// Expired reports whether the message TTL has elapsed at the given time.
func (m *Message) Expired(now time.Time) bool {
	return !now.Before(m.CreatedAt.Add(time.Duration(m.TTL) * time.Second))
}

// Claimed reports whether a live claim holds the message at the given time.
func (m *Message) Claimed(now time.Time) bool {
	return m.ClaimID != "" && now.Before(m.ClaimExpiresAt)
}

// Visible reports whether the message can be listed or claimed.
func (m *Message) Visible(now time.Time) bool {
	return !m.Expired(now) && !m.Claimed(now)
}

// ListOptions filters a message listing.
type ListOptions struct {
	// Limit bounds the page size.
	Limit int

	// Marker resumes after the given opaque position; unknown markers
	// yield an empty page.
	Marker string

	// Echo includes the requesting client's own messages.
	Echo bool

	// IncludeClaimed includes messages held by live claims.
	IncludeClaimed bool
}

// MessagePage is one page of a message listing, ascending by marker.
type MessagePage struct {
	Messages []*Message

	// NextMarker resumes the listing after the last returned message;
	// empty when the page itself is empty.
	NextMarker string
}

// Messages manages message CRUD within a queue.
type Messages interface {
	// Post inserts the batch, creating the queue if needed, and returns
	// the assigned ids in input order. Markers are contiguous and follow
	// input order. Exhausted retries on marker collisions surface
	// ErrMessageConflict.
	Post(ctx context.Context, project, queue string, clientID uuid.UUID, messages []*Message) ([]string, error)

	// List pages visible messages ascending by marker. A missing queue
	// yields an empty page.
	List(ctx context.Context, project, queue string, clientID uuid.UUID, opts ListOptions) (*MessagePage, error)

	// Get returns the message or ErrMessageDoesNotExist. Expired messages
	// and cross-project ids are reported as missing.
	Get(ctx context.Context, project, queue, id string) (*Message, error)

	// BulkGet returns the subset of ids that exist and are unexpired.
	BulkGet(ctx context.Context, project, queue string, ids []string) ([]*Message, error)

	// Delete removes the message. With a claimID the delete only happens
	// when that live claim owns the message; otherwise it is a no-op.
	// Missing ids succeed.
	Delete(ctx context.Context, project, queue, id, claimID string) error

	// BulkDelete removes the given ids, ignoring unknown ones.
	BulkDelete(ctx context.Context, project, queue string, ids []string) error

	// Pop atomically removes and returns up to limit oldest visible
	// messages.
	Pop(ctx context.Context, project, queue string, limit int) ([]*Message, error)

	// First returns the oldest (SortAscending) or newest (SortDescending)
	// visible message, ErrQueueIsEmpty when there is none, or
	// ErrInvariant for any other sort value.
	First(ctx context.Context, project, queue string, sort int) (*Message, error)
}
