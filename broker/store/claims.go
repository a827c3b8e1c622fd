// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package store

import (
	"context"
	"time"
)

// Claim is a time-bounded exclusive lease over a batch of messages.
type Claim struct {
	ID      string
	Project string
	Queue   string

	// TTL is the lease duration in seconds from CreatedAt.
	TTL int

	// Grace is added to each claimed message's TTL at claim time so the
	// message cannot expire while under claim.
	Grace int

	CreatedAt time.Time
}

// Expired reports whether the claim's lease has lapsed at the given time.
func (c *Claim) Expired(now time.Time) bool {
	return !now.Before(c.CreatedAt.Add(time.Duration(c.TTL) * time.Second))
}

// Age returns the claim age in whole seconds at the given time.
func (c *Claim) Age(now time.Time) int64 {
	age := int64(now.Sub(c.CreatedAt) / time.Second)
	if age < 0 {
		return 0
	}
	return age
}

// Claims manages message leases. An expired claim is indistinguishable from
// a missing one.
type Claims interface {
	// Create atomically selects up to limit visible unclaimed messages in
	// marker order, stamps them with a new claim, and returns them. No
	// available messages yields an empty batch and no claim record.
	Create(ctx context.Context, project, queue string, ttl, grace, limit int) (*Claim, []*Message, error)

	// Get returns the live claim and its still-existing messages, or
	// ErrClaimDoesNotExist.
	Get(ctx context.Context, project, queue, id string) (*Claim, []*Message, error)

	// Update extends a live claim's TTL, recomputing its expiry from now.
	// Message TTLs are not re-extended.
	Update(ctx context.Context, project, queue, id string, ttl int) error

	// Delete releases the claim, clearing the stamp from every referenced
	// message. Missing and expired claims succeed.
	Delete(ctx context.Context, project, queue, id string) error
}
