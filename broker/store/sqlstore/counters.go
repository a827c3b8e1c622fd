// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/courier-mq/courier/broker/store"
)

type counters DB

func (c *counters) root() *DB { return (*DB)(c) }

// Get implements store.Counters.
func (c *counters) Get(ctx context.Context, project, queue string) (value int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = c.root().db.QueryRowContext(ctx,
		`SELECT value FROM counters WHERE project = ? AND name = ?`,
		project, queue).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, store.ErrQueueDoesNotExist.New("%s/%s", project, queue)
	}
	if err != nil {
		return 0, Error.Wrap(err)
	}
	return value, nil
}

// Increment implements store.Counters.
func (c *counters) Increment(ctx context.Context, project, queue string, amount int64, window time.Duration) (value int64, ok bool, err error) {
	defer mon.Task()(&ctx)(&err)

	d := c.root()
	now := d.clock.Now()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		var lastModified int64
		err := tx.QueryRowContext(ctx,
			`SELECT value, last_modified FROM counters WHERE project = ? AND name = ?`,
			project, queue).Scan(&value, &lastModified)
		if err == sql.ErrNoRows {
			return store.ErrQueueDoesNotExist.New("%s/%s", project, queue)
		}
		if err != nil {
			return Error.Wrap(err)
		}

		if window > 0 && now.Sub(timeFromNanos(lastModified)) < window {
			ok = false
			return nil
		}

		value += amount
		ok = true
		_, err = tx.ExecContext(ctx,
			`UPDATE counters SET value = ?, last_modified = ? WHERE project = ? AND name = ?`,
			value, now.UnixNano(), project, queue)
		return Error.Wrap(err)
	})
	if err != nil {
		return 0, false, err
	}
	return value, ok, nil
}
