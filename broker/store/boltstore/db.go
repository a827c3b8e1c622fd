// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Package boltstore implements the broker storage contracts on boltdb.
// Messages live in a nested bucket per (project, queue) keyed by big-endian
// marker, so iteration order is marker order and uniqueness of
// (project, queue, marker) comes from the key itself.
package boltstore

import (
	"context"
	"time"

	"github.com/boltdb/bolt"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/shared/backoff"
	"github.com/courier-mq/courier/shared/clock"
)

var (
	mon = monkit.Package()

	// Error is the default boltstore error class.
	Error = errs.Class("boltstore")
)

const (
	fileMode       = 0600
	defaultTimeout = 1 * time.Second
)

var (
	queuesBucket    = []byte("queues")
	countersBucket  = []byte("counters")
	messagesBucket  = []byte("messages")
	claimsBucket    = []byte("claims")
	poolsBucket     = []byte("pools")
	catalogueBucket = []byte("catalogue")
)

// Options tunes a boltstore DB.
type Options struct {
	// Retry is the schedule used when message inserts collide on a
	// marker range.
	Retry backoff.Schedule

	// Clock defaults to the system clock.
	Clock clock.Clock
}

// DefaultRetry is the insert retry schedule used when none is configured.
var DefaultRetry = backoff.Schedule{
	MaxAttempts:  10,
	BaseInterval: 100 * time.Millisecond,
	Jitter:       0.5,
}

// DB is a boltdb-backed implementation of store.DB.
type DB struct {
	log   *zap.Logger
	db    *bolt.DB
	clock clock.Clock
	retry backoff.Schedule
}

// Open opens or creates the bolt database at path.
func Open(log *zap.Logger, path string, opts Options) (*DB, error) {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetry
	}

	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, store.ErrConnection.Wrap(err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			queuesBucket, countersBucket, messagesBucket,
			claimsBucket, poolsBucket, catalogueBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(errs.Combine(err, db.Close()))
	}

	return &DB{
		log:   log,
		db:    db,
		clock: opts.Clock,
		retry: opts.Retry,
	}, nil
}

// Queues implements store.DB.
func (d *DB) Queues() store.Queues { return (*queues)(d) }

// Messages implements store.DB.
func (d *DB) Messages() store.Messages { return (*messages)(d) }

// Claims implements store.DB.
func (d *DB) Claims() store.Claims { return (*claims)(d) }

// Counters implements store.DB.
func (d *DB) Counters() store.Counters { return (*counters)(d) }

// Pools implements store.DB.
func (d *DB) Pools() store.Pools { return (*pools)(d) }

// Catalogue implements store.DB.
func (d *DB) Catalogue() store.Catalogue { return (*catalogue)(d) }

// Ping implements store.DB.
func (d *DB) Ping(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := ctx.Err(); err != nil {
		return store.ErrConnection.Wrap(err)
	}
	return Error.Wrap(d.db.View(func(tx *bolt.Tx) error { return nil }))
}

// Close implements store.DB.
func (d *DB) Close() error {
	return Error.Wrap(d.db.Close())
}

// view runs fn in a read transaction, honoring ctx cancellation up front.
func (d *DB) view(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return store.ErrConnection.Wrap(err)
	}
	return d.db.View(fn)
}

// update runs fn in a write transaction, honoring ctx cancellation up front.
func (d *DB) update(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return store.ErrConnection.Wrap(err)
	}
	return d.db.Update(fn)
}
