// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package store

import "github.com/zeebo/errs"

// Error kinds shared by every backend. The HTTP layer maps these to status
// codes; backends must wrap their driver errors into one of them so that the
// pooling router can pass failures through unchanged.
var (
	// ErrQueueDoesNotExist is returned when an operation targets an
	// unknown queue.
	ErrQueueDoesNotExist = errs.Class("queue does not exist")

	// ErrQueueIsEmpty is returned by First when no visible message exists.
	ErrQueueIsEmpty = errs.Class("queue is empty")

	// ErrMessageDoesNotExist is returned when a message id cannot be found.
	ErrMessageDoesNotExist = errs.Class("message does not exist")

	// ErrMessageConflict is returned when concurrent posts collide on a
	// marker range and retries were exhausted.
	ErrMessageConflict = errs.Class("message conflict")

	// ErrClaimDoesNotExist is returned for missing or expired claims.
	ErrClaimDoesNotExist = errs.Class("claim does not exist")

	// ErrPoolDoesNotExist is returned when a pool id is not registered.
	ErrPoolDoesNotExist = errs.Class("pool does not exist")

	// ErrConnection is returned when the backend is unreachable after
	// reconnect attempts are exhausted.
	ErrConnection = errs.Class("storage connection")

	// ErrInvariant indicates a programming error, such as an unknown sort
	// order. It is never surfaced as a client validation failure.
	ErrInvariant = errs.Class("storage invariant")
)
