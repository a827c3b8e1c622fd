// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/courier-mq/courier/broker/store"
)

type claims DB

func (c *claims) root() *DB { return (*DB)(c) }

// Create implements store.Claims.
func (c *claims) Create(ctx context.Context, project, queue string, ttl, grace, limit int) (claim *store.Claim, claimed []*store.Message, err error) {
	defer mon.Task()(&ctx)(&err)

	d := c.root()
	now := d.clock.Now()
	nanos := now.UnixNano()
	claimID := uuid.NewString()
	expires := now.Add(time.Duration(ttl) * time.Second)
	claimed = []*store.Message{}

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+messageColumns+` FROM messages
			 WHERE project = ? AND queue = ? AND `+visibleCond+`
			 ORDER BY marker LIMIT ?`,
			project, queue, nanos, nanos, limit)
		if err != nil {
			return Error.Wrap(err)
		}
		var selected []*store.Message
		for rows.Next() {
			msg, err := scanMessage(rows, project, queue)
			if err != nil {
				return errs.Combine(err, rows.Close())
			}
			selected = append(selected, msg)
		}
		if err := errs.Combine(rows.Err(), rows.Close()); err != nil {
			return Error.Wrap(err)
		}
		if len(selected) == 0 {
			return nil
		}

		for _, msg := range selected {
			if _, err := tx.ExecContext(ctx,
				`UPDATE messages SET claim_id = ?, claim_expires_at = ?, ttl = ttl + ?
				 WHERE project = ? AND queue = ? AND marker = ?`,
				claimID, expires.UnixNano(), grace,
				project, queue, msg.Marker); err != nil {
				return Error.Wrap(err)
			}
			msg.ClaimID = claimID
			msg.ClaimExpiresAt = expires
			msg.TTL += grace
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO claims (project, queue, id, ttl, grace, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			project, queue, claimID, ttl, grace, nanos); err != nil {
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
		claimed = selected
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

	claim, err = c.getLive(ctx, project, queue, id, now)
	if err != nil {
		return nil, nil, err
	}

	msgs = []*store.Message{}
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE project = ? AND queue = ? AND claim_id = ? AND `+unexpiredCond+`
		 ORDER BY marker`,
		project, queue, id, now.UnixNano())
	if err != nil {
		return nil, nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	for rows.Next() {
		msg, err := scanMessage(rows, project, queue)
		if err != nil {
			return nil, nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, Error.Wrap(err)
	}
	return claim, msgs, nil
}

// Update implements store.Claims.
func (c *claims) Update(ctx context.Context, project, queue, id string, ttl int) (err error) {
	defer mon.Task()(&ctx)(&err)

	d := c.root()
	now := d.clock.Now()
	expires := now.Add(time.Duration(ttl) * time.Second)

	return d.withTx(ctx, func(tx *sql.Tx) error {
		var (
			curTTL    int
			createdAt int64
		)
		err := tx.QueryRowContext(ctx,
			`SELECT ttl, created_at FROM claims WHERE project = ? AND queue = ? AND id = ?`,
			project, queue, id).Scan(&curTTL, &createdAt)
		if err == sql.ErrNoRows {
			return store.ErrClaimDoesNotExist.New("%s", id)
		}
		if err != nil {
			return Error.Wrap(err)
		}
		if !now.Before(timeFromNanos(createdAt).Add(time.Duration(curTTL) * time.Second)) {
			return store.ErrClaimDoesNotExist.New("%s", id)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE claims SET ttl = ?, created_at = ? WHERE project = ? AND queue = ? AND id = ?`,
			ttl, now.UnixNano(), project, queue, id); err != nil {
			return Error.Wrap(err)
		}

		// Push the new expiry onto the stamped messages so they stay
		// invisible for the extended lease.
		_, err = tx.ExecContext(ctx,
			`UPDATE messages SET claim_expires_at = ? WHERE project = ? AND queue = ? AND claim_id = ?`,
			expires.UnixNano(), project, queue, id)
		return Error.Wrap(err)
	})
}

// Delete implements store.Claims.
func (c *claims) Delete(ctx context.Context, project, queue, id string) (err error) {
	defer mon.Task()(&ctx)(&err)

	return c.root().withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM claims WHERE project = ? AND queue = ? AND id = ?`,
			project, queue, id); err != nil {
			return Error.Wrap(err)
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE messages SET claim_id = '', claim_expires_at = 0
			 WHERE project = ? AND queue = ? AND claim_id = ?`,
			project, queue, id)
		return Error.Wrap(err)
	})
}

// getLive loads the claim record, treating expired claims as missing.
func (c *claims) getLive(ctx context.Context, project, queue, id string, now time.Time) (*store.Claim, error) {
	var (
		ttl, grace int
		createdAt  int64
	)
	err := c.root().db.QueryRowContext(ctx,
		`SELECT ttl, grace, created_at FROM claims WHERE project = ? AND queue = ? AND id = ?`,
		project, queue, id).Scan(&ttl, &grace, &createdAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrClaimDoesNotExist.New("%s", id)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	claim := &store.Claim{
		ID:        id,
		Project:   project,
		Queue:     queue,
		TTL:       ttl,
		Grace:     grace,
		CreatedAt: timeFromNanos(createdAt),
	}
	if claim.Expired(now) {
		return nil, store.ErrClaimDoesNotExist.New("%s", id)
	}
	return claim, nil
}
