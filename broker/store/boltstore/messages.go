// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package boltstore

import (
	"context"
	"strconv"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courier-mq/courier/broker/store"
)

type messages DB

func (m *messages) root() *DB { return (*DB)(m) }

// Post implements store.Messages.
func (m *messages) Post(ctx context.Context, project, queue string, clientID uuid.UUID, msgs []*store.Message) (ids []string, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(msgs) == 0 {
		return []string{}, nil
	}

	d := m.root()
	if err := (*queues)(d).ensure(ctx, project, queue); err != nil {
		return nil, err
	}

	err = d.retry.Run(ctx, func(ctx context.Context) (retry bool, err error) {
		value, _, err := (*counters)(d).Increment(ctx, project, queue, int64(len(msgs)), 0)
		if err != nil {
			return false, err
		}
		first := uint64(value) - uint64(len(msgs)) + 1

		now := d.clock.Now()
		assigned := make([]string, len(msgs))
		err = d.update(ctx, func(tx *bolt.Tx) error {
			bucket, err := tx.Bucket(messagesBucket).CreateBucketIfNotExists(scopeKey(project, queue))
			if err != nil {
				return Error.Wrap(err)
			}

			for i, msg := range msgs {
				marker := first + uint64(i)
				key := markerKey(marker)
				if bucket.Get(key) != nil {
					return store.ErrMessageConflict.New("marker %d already taken in %s/%s", marker, project, queue)
				}

				msg.ID = newMessageID(marker)
				msg.Project = project
				msg.Queue = queue
				msg.Marker = marker
				msg.CreatedAt = now
				msg.ClientID = clientID

				rec, err := fromMessage(msg)
				if err != nil {
					return err
				}
				data, err := encode(rec)
				if err != nil {
					return err
				}
				if err := bucket.Put(key, data); err != nil {
					return Error.Wrap(err)
				}
				assigned[i] = msg.ID
			}
			return nil
		})
		if err != nil {
			if store.ErrMessageConflict.Has(err) {
				d.log.Debug("marker collision, retrying post",
					zap.String("project", project), zap.String("queue", queue))
				return true, err
			}
			return false, err
		}

		ids = assigned
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// List implements store.Messages.
func (m *messages) List(ctx context.Context, project, queue string, clientID uuid.UUID, opts store.ListOptions) (_ *store.MessagePage, err error) {
	defer mon.Task()(&ctx)(&err)

	page := &store.MessagePage{Messages: []*store.Message{}}

	var after uint64
	if opts.Marker != "" {
		after, err = strconv.ParseUint(opts.Marker, 10, 64)
		if err != nil {
			// Unknown markers yield an empty page rather than an error.
			return page, nil
		}
	}

	d := m.root()
	now := d.clock.Now()
	client := clientID.String()

	err = d.view(ctx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(messagesBucket).Bucket(scopeKey(project, queue))
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for key, data := cursor.Seek(markerKey(after + 1)); key != nil; key, data = cursor.Next() {
			if len(page.Messages) >= opts.Limit {
				break
			}

			var rec messageRecord
			if err := decode(data, &rec); err != nil {
				return err
			}
			msg, err := rec.toMessage(project, queue)
			if err != nil {
				return err
			}

			if msg.Expired(now) {
				continue
			}
			if !opts.IncludeClaimed && msg.Claimed(now) {
				continue
			}
			if !opts.Echo && rec.ClientID == client {
				continue
			}
			page.Messages = append(page.Messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(page.Messages) > 0 {
		last := page.Messages[len(page.Messages)-1]
		page.NextMarker = strconv.FormatUint(last.Marker, 10)
	}
	return page, nil
}

// Get implements store.Messages.
func (m *messages) Get(ctx context.Context, project, queue, id string) (_ *store.Message, err error) {
	defer mon.Task()(&ctx)(&err)

	marker, ok := parseMessageID(id)
	if !ok {
		return nil, store.ErrMessageDoesNotExist.New("%s", id)
	}

	d := m.root()
	now := d.clock.Now()
	var msg *store.Message

	err = d.view(ctx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(messagesBucket).Bucket(scopeKey(project, queue))
		if bucket == nil {
			return store.ErrMessageDoesNotExist.New("%s", id)
		}
		data := bucket.Get(markerKey(marker))
		if data == nil {
			return store.ErrMessageDoesNotExist.New("%s", id)
		}

		var rec messageRecord
		if err := decode(data, &rec); err != nil {
			return err
		}
		if rec.ID != id {
			return store.ErrMessageDoesNotExist.New("%s", id)
		}
		msg, err = rec.toMessage(project, queue)
		if err != nil {
			return err
		}
		if msg.Expired(now) {
			msg = nil
			return store.ErrMessageDoesNotExist.New("%s", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// BulkGet implements store.Messages.
func (m *messages) BulkGet(ctx context.Context, project, queue string, ids []string) (_ []*store.Message, err error) {
	defer mon.Task()(&ctx)(&err)

	found := []*store.Message{}
	for _, id := range ids {
		msg, err := m.Get(ctx, project, queue, id)
		if err != nil {
			if store.ErrMessageDoesNotExist.Has(err) {
				continue
			}
			return nil, err
		}
		found = append(found, msg)
	}
	return found, nil
}

// Delete implements store.Messages.
func (m *messages) Delete(ctx context.Context, project, queue, id, claimID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	marker, ok := parseMessageID(id)
	if !ok {
		return nil
	}

	d := m.root()
	now := d.clock.Now()

	return d.update(ctx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(messagesBucket).Bucket(scopeKey(project, queue))
		if bucket == nil {
			return nil
		}
		key := markerKey(marker)
		data := bucket.Get(key)
		if data == nil {
			return nil
		}

		var rec messageRecord
		if err := decode(data, &rec); err != nil {
			return err
		}
		if rec.ID != id {
			return nil
		}
		if claimID != "" {
			// Only a live owning claim may delete; anything else is a
			// silent no-op so the message stays retrievable.
			if rec.ClaimID != claimID || !now.Before(timeFromNanos(rec.ClaimExpiresAt)) {
				return nil
			}
		}
		return Error.Wrap(bucket.Delete(key))
	})
}

// BulkDelete implements store.Messages.
func (m *messages) BulkDelete(ctx context.Context, project, queue string, ids []string) (err error) {
	defer mon.Task()(&ctx)(&err)

	return m.root().update(ctx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(messagesBucket).Bucket(scopeKey(project, queue))
		if bucket == nil {
			return nil
		}
		for _, id := range ids {
			marker, ok := parseMessageID(id)
			if !ok {
				continue
			}
			key := markerKey(marker)
			data := bucket.Get(key)
			if data == nil {
				continue
			}
			var rec messageRecord
			if err := decode(data, &rec); err != nil {
				return err
			}
			if rec.ID != id {
				continue
			}
			if err := bucket.Delete(key); err != nil {
				return Error.Wrap(err)
			}
		}
		return nil
	})
}

// Pop implements store.Messages.
func (m *messages) Pop(ctx context.Context, project, queue string, limit int) (popped []*store.Message, err error) {
	defer mon.Task()(&ctx)(&err)

	d := m.root()
	now := d.clock.Now()
	popped = []*store.Message{}

	err = d.update(ctx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(messagesBucket).Bucket(scopeKey(project, queue))
		if bucket == nil {
			return nil
		}

		var keys [][]byte
		cursor := bucket.Cursor()
		for key, data := cursor.First(); key != nil && len(popped) < limit; key, data = cursor.Next() {
			var rec messageRecord
			if err := decode(data, &rec); err != nil {
				return err
			}
			msg, err := rec.toMessage(project, queue)
			if err != nil {
				return err
			}
			if !msg.Visible(now) {
				continue
			}
			popped = append(popped, msg)
			keys = append(keys, append([]byte(nil), key...))
		}

		for _, key := range keys {
			if err := bucket.Delete(key); err != nil {
				return Error.Wrap(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return popped, nil
}

// First implements store.Messages.
func (m *messages) First(ctx context.Context, project, queue string, sort int) (_ *store.Message, err error) {
	defer mon.Task()(&ctx)(&err)

	if sort != store.SortAscending && sort != store.SortDescending {
		return nil, store.ErrInvariant.New("invalid sort order %d", sort)
	}

	d := m.root()
	now := d.clock.Now()
	var first *store.Message

	err = d.view(ctx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(messagesBucket).Bucket(scopeKey(project, queue))
		if bucket == nil {
			return store.ErrQueueIsEmpty.New("%s/%s", project, queue)
		}

		cursor := bucket.Cursor()
		next := cursor.Next
		key, data := cursor.First()
		if sort == store.SortDescending {
			next = cursor.Prev
			key, data = cursor.Last()
		}

		for ; key != nil; key, data = next() {
			var rec messageRecord
			if err := decode(data, &rec); err != nil {
				return err
			}
			msg, err := rec.toMessage(project, queue)
			if err != nil {
				return err
			}
			if !msg.Visible(now) {
				continue
			}
			first = msg
			return nil
		}
		return store.ErrQueueIsEmpty.New("%s/%s", project, queue)
	})
	if err != nil {
		return nil, err
	}
	return first, nil
}
