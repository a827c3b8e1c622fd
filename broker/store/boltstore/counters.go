// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package boltstore

import (
	"context"
	"time"

	"github.com/boltdb/bolt"

	"github.com/courier-mq/courier/broker/store"
)

type counters DB

func (c *counters) root() *DB { return (*DB)(c) }

// Get implements store.Counters.
func (c *counters) Get(ctx context.Context, project, queue string) (value int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = c.root().view(ctx, func(tx *bolt.Tx) error {
		data := tx.Bucket(countersBucket).Get(scopeKey(project, queue))
		if data == nil {
			return store.ErrQueueDoesNotExist.New("%s/%s", project, queue)
		}
		var rec counterRecord
		if err := decode(data, &rec); err != nil {
			return err
		}
		value = rec.Value
		return nil
	})
	return value, err
}

// Increment implements store.Counters.
func (c *counters) Increment(ctx context.Context, project, queue string, amount int64, window time.Duration) (value int64, ok bool, err error) {
	defer mon.Task()(&ctx)(&err)

	d := c.root()
	now := d.clock.Now()

	err = d.update(ctx, func(tx *bolt.Tx) error {
		key := scopeKey(project, queue)
		bucket := tx.Bucket(countersBucket)

		data := bucket.Get(key)
		if data == nil {
			return store.ErrQueueDoesNotExist.New("%s/%s", project, queue)
		}
		var rec counterRecord
		if err := decode(data, &rec); err != nil {
			return err
		}

		if window > 0 && now.Sub(timeFromNanos(rec.LastModified)) < window {
			value, ok = rec.Value, false
			return nil
		}

		rec.Value += amount
		rec.LastModified = now.UnixNano()
		updated, err := encode(&rec)
		if err != nil {
			return err
		}
		if err := bucket.Put(key, updated); err != nil {
			return Error.Wrap(err)
		}
		value, ok = rec.Value, true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return value, ok, nil
}
