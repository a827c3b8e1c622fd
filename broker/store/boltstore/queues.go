// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package boltstore

import (
	"bytes"
	"context"

	"github.com/boltdb/bolt"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/courier-mq/courier/broker/store"
)

type queues DB

func (q *queues) root() *DB { return (*DB)(q) }

// Create implements store.Queues.
func (q *queues) Create(ctx context.Context, project, name string, metadata map[string]interface{}) (created bool, err error) {
	defer mon.Task()(&ctx)(&err)

	meta, err := encode(metadata)
	if err != nil {
		return false, err
	}

	d := q.root()
	now := d.clock.Now()
	err = d.update(ctx, func(tx *bolt.Tx) error {
		key := scopeKey(project, name)
		bucket := tx.Bucket(queuesBucket)

		if existing := bucket.Get(key); existing != nil {
			var rec queueRecord
			if err := decode(existing, &rec); err != nil {
				return err
			}
			rec.Metadata = meta
			data, err := encode(&rec)
			if err != nil {
				return err
			}
			return Error.Wrap(bucket.Put(key, data))
		}

		created = true
		data, err := encode(&queueRecord{Metadata: meta, CreatedAt: now.UnixNano()})
		if err != nil {
			return err
		}
		if err := bucket.Put(key, data); err != nil {
			return Error.Wrap(err)
		}

		counter, err := encode(&counterRecord{Value: 1, LastModified: now.UnixNano()})
		if err != nil {
			return err
		}
		return Error.Wrap(tx.Bucket(countersBucket).Put(key, counter))
	})
	return created, err
}

// ensure creates the queue with empty metadata when missing, leaving
// existing metadata alone. Used by implicit creation on message post.
func (q *queues) ensure(ctx context.Context, project, name string) error {
	d := q.root()
	now := d.clock.Now()
	return d.update(ctx, func(tx *bolt.Tx) error {
		key := scopeKey(project, name)
		bucket := tx.Bucket(queuesBucket)
		if bucket.Get(key) != nil {
			return nil
		}

		data, err := encode(&queueRecord{CreatedAt: now.UnixNano()})
		if err != nil {
			return err
		}
		if err := bucket.Put(key, data); err != nil {
			return Error.Wrap(err)
		}
		counter, err := encode(&counterRecord{Value: 1, LastModified: now.UnixNano()})
		if err != nil {
			return err
		}
		return Error.Wrap(tx.Bucket(countersBucket).Put(key, counter))
	})
}

// Get implements store.Queues.
func (q *queues) Get(ctx context.Context, project, name string) (_ *store.Queue, err error) {
	defer mon.Task()(&ctx)(&err)

	var queue *store.Queue
	err = q.root().view(ctx, func(tx *bolt.Tx) error {
		data := tx.Bucket(queuesBucket).Get(scopeKey(project, name))
		if data == nil {
			return store.ErrQueueDoesNotExist.New("%s/%s", project, name)
		}
		queue, err = decodeQueue(project, name, data)
		return err
	})
	return queue, err
}

// SetMetadata implements store.Queues.
func (q *queues) SetMetadata(ctx context.Context, project, name string, metadata map[string]interface{}) (err error) {
	defer mon.Task()(&ctx)(&err)

	meta, err := encode(metadata)
	if err != nil {
		return err
	}

	return q.root().update(ctx, func(tx *bolt.Tx) error {
		key := scopeKey(project, name)
		bucket := tx.Bucket(queuesBucket)

		data := bucket.Get(key)
		if data == nil {
			return store.ErrQueueDoesNotExist.New("%s/%s", project, name)
		}
		var rec queueRecord
		if err := decode(data, &rec); err != nil {
			return err
		}
		rec.Metadata = meta
		updated, err := encode(&rec)
		if err != nil {
			return err
		}
		return Error.Wrap(bucket.Put(key, updated))
	})
}

// Exists implements store.Queues.
func (q *queues) Exists(ctx context.Context, project, name string) (exists bool, err error) {
	defer mon.Task()(&ctx)(&err)

	err = q.root().view(ctx, func(tx *bolt.Tx) error {
		exists = tx.Bucket(queuesBucket).Get(scopeKey(project, name)) != nil
		return nil
	})
	return exists, err
}

// List implements store.Queues.
func (q *queues) List(ctx context.Context, project, marker string, limit int) (_ *store.QueuePage, err error) {
	defer mon.Task()(&ctx)(&err)

	page := &store.QueuePage{Queues: []*store.Queue{}}
	prefix := scopeKey(project, "")

	err = q.root().view(ctx, func(tx *bolt.Tx) error {
		cursor := tx.Bucket(queuesBucket).Cursor()

		start := prefix
		if marker != "" {
			// Seek past the marker queue itself.
			start = append(scopeKey(project, marker), 0xff)
		}

		for key, data := cursor.Seek(start); key != nil && bytes.HasPrefix(key, prefix); key, data = cursor.Next() {
			if len(page.Queues) >= limit {
				break
			}
			name := string(key[len(prefix):])
			queue, err := decodeQueue(project, name, data)
			if err != nil {
				return err
			}
			page.Queues = append(page.Queues, queue)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(page.Queues) > 0 {
		page.NextMarker = page.Queues[len(page.Queues)-1].Name
	}
	return page, nil
}

// Delete implements store.Queues.
func (q *queues) Delete(ctx context.Context, project, name string) (err error) {
	defer mon.Task()(&ctx)(&err)

	return q.root().update(ctx, func(tx *bolt.Tx) error {
		key := scopeKey(project, name)
		if err := tx.Bucket(queuesBucket).Delete(key); err != nil {
			return Error.Wrap(err)
		}
		if err := tx.Bucket(countersBucket).Delete(key); err != nil {
			return Error.Wrap(err)
		}
		for _, parent := range [][]byte{messagesBucket, claimsBucket} {
			bucket := tx.Bucket(parent)
			if bucket.Bucket(key) == nil {
				continue
			}
			if err := bucket.DeleteBucket(key); err != nil {
				return Error.Wrap(err)
			}
		}
		return nil
	})
}

// Stats implements store.Queues.
func (q *queues) Stats(ctx context.Context, project, name string) (_ *store.QueueStats, err error) {
	defer mon.Task()(&ctx)(&err)

	d := q.root()
	now := d.clock.Now()
	stats := &store.QueueStats{}

	err = d.view(ctx, func(tx *bolt.Tx) error {
		if tx.Bucket(queuesBucket).Get(scopeKey(project, name)) == nil {
			return store.ErrQueueDoesNotExist.New("%s/%s", project, name)
		}

		bucket := tx.Bucket(messagesBucket).Bucket(scopeKey(project, name))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(_, data []byte) error {
			var rec messageRecord
			if err := decode(data, &rec); err != nil {
				return err
			}
			msg, err := rec.toMessage(project, name)
			if err != nil {
				return err
			}
			if msg.Expired(now) {
				return nil
			}
			if msg.Claimed(now) {
				stats.Claimed++
				return nil
			}
			stats.Free++
			ref := &store.MessageRef{
				ID:        msg.ID,
				Age:       msg.Age(now),
				CreatedAt: msg.CreatedAt,
			}
			if stats.Oldest == nil {
				stats.Oldest = ref
			}
			stats.Newest = ref
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	stats.Total = stats.Free + stats.Claimed
	return stats, nil
}

func decodeQueue(project, name string, data []byte) (*store.Queue, error) {
	var rec queueRecord
	if err := decode(data, &rec); err != nil {
		return nil, err
	}

	queue := &store.Queue{
		Project:   project,
		Name:      name,
		CreatedAt: timeFromNanos(rec.CreatedAt),
	}
	if len(rec.Metadata) > 0 {
		dec := msgpack.NewDecoder(bytes.NewReader(rec.Metadata))
		dec.UseLooseInterfaceDecoding(true)
		var meta map[string]interface{}
		if err := dec.Decode(&meta); err != nil {
			return nil, Error.Wrap(err)
		}
		queue.Metadata = meta
	}
	return queue, nil
}
