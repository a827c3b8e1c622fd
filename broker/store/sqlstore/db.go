// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Package sqlstore implements the broker storage contracts on sqlite. A
// unique (project, queue, marker) primary key makes colliding post batches
// fail so the insert retry path can re-reserve a marker range.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/shared/backoff"
	"github.com/courier-mq/courier/shared/clock"
)

var (
	mon = monkit.Package()

	// Error is the default sqlstore error class.
	Error = errs.Class("sqlstore")
)

const schema = `
CREATE TABLE IF NOT EXISTS queues (
	project    TEXT NOT NULL,
	name       TEXT NOT NULL,
	metadata   BLOB,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (project, name)
);

CREATE TABLE IF NOT EXISTS counters (
	project       TEXT NOT NULL,
	name          TEXT NOT NULL,
	value         INTEGER NOT NULL,
	last_modified INTEGER NOT NULL,
	PRIMARY KEY (project, name)
);

CREATE TABLE IF NOT EXISTS messages (
	project          TEXT NOT NULL,
	queue            TEXT NOT NULL,
	marker           INTEGER NOT NULL,
	id               TEXT NOT NULL,
	body             BLOB NOT NULL,
	ttl              INTEGER NOT NULL,
	created_at       INTEGER NOT NULL,
	client_id        TEXT NOT NULL,
	claim_id         TEXT NOT NULL DEFAULT '',
	claim_expires_at INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project, queue, marker)
);

CREATE UNIQUE INDEX IF NOT EXISTS messages_by_id ON messages (project, queue, id);
CREATE INDEX IF NOT EXISTS messages_by_claim ON messages (project, queue, claim_id);

CREATE TABLE IF NOT EXISTS claims (
	project    TEXT NOT NULL,
	queue      TEXT NOT NULL,
	id         TEXT NOT NULL,
	ttl        INTEGER NOT NULL,
	grace      INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (project, queue, id)
);

CREATE TABLE IF NOT EXISTS pools (
	id       TEXT NOT NULL PRIMARY KEY,
	uri      TEXT NOT NULL,
	weight   INTEGER NOT NULL,
	grp      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS catalogue (
	project TEXT NOT NULL,
	queue   TEXT NOT NULL,
	pool_id TEXT NOT NULL,
	PRIMARY KEY (project, queue)
);
`

// Options tunes a sqlstore DB.
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

// DB is a sqlite-backed implementation of store.DB.
type DB struct {
	log   *zap.Logger
	db    *sql.DB
	clock clock.Clock
	retry backoff.Schedule
}

// Open opens or creates the sqlite database at path and applies the schema.
func Open(log *zap.Logger, path string, opts Options) (*DB, error) {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetry
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, store.ErrConnection.Wrap(err)
	}
	// sqlite serializes writers anyway; one connection avoids
	// SQLITE_BUSY on overlapping transactions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
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
	return store.ErrConnection.Wrap(d.db.PingContext(ctx))
}

// Close implements store.DB.
func (d *DB) Close() error {
	return Error.Wrap(d.db.Close())
}

// withTx runs fn inside a transaction, rolling back on error.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return store.ErrConnection.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, ignoreDone(tx.Rollback()))
			return
		}
		err = Error.Wrap(tx.Commit())
	}()
	return fn(tx)
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// isConstraint reports whether err is a uniqueness violation.
func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
