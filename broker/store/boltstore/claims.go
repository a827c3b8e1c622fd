// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package boltstore

import (
	"context"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/courier-mq/courier/broker/store"
)

type claims DB

func (c *claims) root() *DB { return (*DB)(c) }

// Create implements store.Claims.
func (c *claims) Create(ctx context.Context, project, queue string, ttl, grace, limit int) (claim *store.Claim, claimed []*store.Message, err error) {
	defer mon.Task()(&ctx)(&err)

	d := c.root()
	now := d.clock.Now()
	claimID := uuid.NewString()
	expires := now.Add(time.Duration(ttl) * time.Second)
	claimed = []*store.Message{}

	err = d.update(ctx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(messagesBucket).Bucket(scopeKey(project, queue))
		if bucket == nil {
			return nil
		}

		type stamped struct {
			key []byte
			rec messageRecord
		}
		var updates []stamped

		cursor := bucket.Cursor()
		for key, data := cursor.First(); key != nil && len(updates) < limit; key, data = cursor.Next() {
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

			rec.ClaimID = claimID
			rec.ClaimExpiresAt = expires.UnixNano()
			rec.TTL += grace
			updates = append(updates, stamped{key: append([]byte(nil), key...), rec: rec})
		}
		if len(updates) == 0 {
			return nil
		}

		for _, u := range updates {
			data, err := encode(&u.rec)
			if err != nil {
				return err
			}
			if err := bucket.Put(u.key, data); err != nil {
				return Error.Wrap(err)
			}
			msg, err := u.rec.toMessage(project, queue)
			if err != nil {
				return err
			}
			msg.ClaimExpiresAt = expires
			claimed = append(claimed, msg)
		}

		claimsScope, err := tx.Bucket(claimsBucket).CreateBucketIfNotExists(scopeKey(project, queue))
		if err != nil {
			return Error.Wrap(err)
		}
		data, err := encode(&claimRecord{TTL: ttl, Grace: grace, CreatedAt: now.UnixNano()})
		if err != nil {
			return err
		}
		if err := claimsScope.Put([]byte(claimID), data); err != nil {
			return Error.Wrap(err)
		}

		claim = &store.Claim{
			ID:        claimID,
			Project:   project,
			Queue:     queue,
			TTL:       ttl,
			Grace:     grace,
			CreatedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return claim, claimed, nil
}

// Get implements store.Claims.
func (c *claims) Get(ctx context.Context, project, queue, id string) (claim *store.Claim, msgs []*store.Message, err error) {
	defer mon.Task()(&ctx)(&err)

	d := c.root()
	now := d.clock.Now()
	msgs = []*store.Message{}

	err = d.view(ctx, func(tx *bolt.Tx) error {
		claim, err = c.getLive(tx, project, queue, id, now)
		if err != nil {
			return err
		}

		bucket := tx.Bucket(messagesBucket).Bucket(scopeKey(project, queue))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, data []byte) error {
			var rec messageRecord
			if err := decode(data, &rec); err != nil {
				return err
			}
			if rec.ClaimID != id {
				return nil
			}
			msg, err := rec.toMessage(project, queue)
			if err != nil {
				return err
			}
			if msg.Expired(now) {
				return nil
			}
			msgs = append(msgs, msg)
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return claim, msgs, nil
}

// Update implements store.Claims.
func (c *claims) Update(ctx context.Context, project, queue, id string, ttl int) (err error) {
	defer mon.Task()(&ctx)(&err)

	d := c.root()
	now := d.clock.Now()
	expires := now.Add(time.Duration(ttl) * time.Second)

	return d.update(ctx, func(tx *bolt.Tx) error {
		claim, err := c.getLive(tx, project, queue, id, now)
		if err != nil {
			return err
		}

		claim.TTL = ttl
		claim.CreatedAt = now
		data, err := encode(&claimRecord{TTL: ttl, Grace: claim.Grace, CreatedAt: now.UnixNano()})
		if err != nil {
			return err
		}
		if err := tx.Bucket(claimsBucket).Bucket(scopeKey(project, queue)).Put([]byte(id), data); err != nil {
			return Error.Wrap(err)
		}

		// Push the new expiry onto the stamped messages so they stay
		// invisible for the extended lease.
		bucket := tx.Bucket(messagesBucket).Bucket(scopeKey(project, queue))
		if bucket == nil {
			return nil
		}
		return c.restamp(bucket, id, func(rec *messageRecord) {
			rec.ClaimExpiresAt = expires.UnixNano()
		})
	})
}

// Delete implements store.Claims.
func (c *claims) Delete(ctx context.Context, project, queue, id string) (err error) {
	defer mon.Task()(&ctx)(&err)

	return c.root().update(ctx, func(tx *bolt.Tx) error {
		if scope := tx.Bucket(claimsBucket).Bucket(scopeKey(project, queue)); scope != nil {
			if err := scope.Delete([]byte(id)); err != nil {
				return Error.Wrap(err)
			}
		}

		bucket := tx.Bucket(messagesBucket).Bucket(scopeKey(project, queue))
		if bucket == nil {
			return nil
		}
		return c.restamp(bucket, id, func(rec *messageRecord) {
			rec.ClaimID = ""
			rec.ClaimExpiresAt = 0
		})
	})
}

// getLive loads the claim record, treating expired claims as missing.
func (c *claims) getLive(tx *bolt.Tx, project, queue, id string, now time.Time) (*store.Claim, error) {
	scope := tx.Bucket(claimsBucket).Bucket(scopeKey(project, queue))
	if scope == nil {
		return nil, store.ErrClaimDoesNotExist.New("%s", id)
	}
	data := scope.Get([]byte(id))
	if data == nil {
		return nil, store.ErrClaimDoesNotExist.New("%s", id)
	}

	var rec claimRecord
	if err := decode(data, &rec); err != nil {
		return nil, err
	}
	claim := &store.Claim{
		ID:        id,
		Project:   project,
		Queue:     queue,
		TTL:       rec.TTL,
		Grace:     rec.Grace,
		CreatedAt: timeFromNanos(rec.CreatedAt),
	}
	if claim.Expired(now) {
		return nil, store.ErrClaimDoesNotExist.New("%s", id)
	}
	return claim, nil
}

// restamp rewrites every message stamped with the claim id.
func (c *claims) restamp(bucket *bolt.Bucket, claimID string, change func(*messageRecord)) error {
	type update struct {
		key []byte
		rec messageRecord
	}
	var updates []update

	err := bucket.ForEach(func(key, data []byte) error {
		var rec messageRecord
		if err := decode(data, &rec); err != nil {
			return err
		}
		if rec.ClaimID != claimID {
			return nil
		}
		change(&rec)
		updates = append(updates, update{key: append([]byte(nil), key...), rec: rec})
		return nil
	})
	if err != nil {
		return err
	}

	for _, u := range updates {
		data, err := encode(&u.rec)
		if err != nil {
			return err
		}
		if err := bucket.Put(u.key, data); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}
