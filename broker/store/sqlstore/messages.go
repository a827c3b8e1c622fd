// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
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

	bodies := make([][]byte, len(msgs))
	for i, msg := range msgs {
		bodies[i], err = encodeBody(msg.Body)
		if err != nil {
			return nil, err
		}
	}

	err = d.retry.Run(ctx, func(ctx context.Context) (retry bool, err error) {
		value, _, err := (*counters)(d).Increment(ctx, project, queue, int64(len(msgs)), 0)
		if err != nil {
			return false, err
		}
		first := uint64(value) - uint64(len(msgs)) + 1

		now := d.clock.Now()
		assigned := make([]string, len(msgs))
		err = d.withTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx,
				`INSERT INTO messages (project, queue, marker, id, body, ttl, created_at, client_id)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
			if err != nil {
				return Error.Wrap(err)
			}
			defer func() { _ = stmt.Close() }()

			for i, msg := range msgs {
				marker := first + uint64(i)
				id := newMessageID()

				_, err := stmt.ExecContext(ctx,
					project, queue, marker, id, bodies[i], msg.TTL, now.UnixNano(), clientID.String())
				if err != nil {
					if isConstraint(err) {
						return store.ErrMessageConflict.New("marker %d already taken in %s/%s", marker, project, queue)
					}
					return Error.Wrap(err)
				}

				msg.ID = id
				msg.Project = project
				msg.Queue = queue
				msg.Marker = marker
				msg.CreatedAt = now
				msg.ClientID = clientID
				assigned[i] = id
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
	nanos := d.clock.Now().UnixNano()

	query := `SELECT ` + messageColumns + ` FROM messages
		 WHERE project = ? AND queue = ? AND marker > ? AND ` + unexpiredCond
	args := []interface{}{project, queue, after, nanos}

	if !opts.IncludeClaimed {
		query += ` AND (claim_id = '' OR claim_expires_at <= ?)`
		args = append(args, nanos)
	}
	if !opts.Echo {
		query += ` AND client_id != ?`
		args = append(args, clientID.String())
	}
	query += ` ORDER BY marker LIMIT ?`
	args = append(args, opts.Limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	for rows.Next() {
		msg, err := scanMessage(rows, project, queue)
		if err != nil {
			return nil, err
		}
		page.Messages = append(page.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(err)
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

	d := m.root()
	nanos := d.clock.Now().UnixNano()

	msg, err := scanMessage(d.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE project = ? AND queue = ? AND id = ? AND `+unexpiredCond,
		project, queue, id, nanos), project, queue)
	if err != nil {
		if store.ErrMessageDoesNotExist.Has(err) {
			return nil, store.ErrMessageDoesNotExist.New("%s", id)
		}
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

	d := m.root()

	if claimID == "" {
		_, err = d.db.ExecContext(ctx,
			`DELETE FROM messages WHERE project = ? AND queue = ? AND id = ?`,
			project, queue, id)
		return Error.Wrap(err)
	}

	// Only a live owning claim may delete; anything else is a silent
	// no-op so the message stays retrievable.
	_, err = d.db.ExecContext(ctx,
		`DELETE FROM messages
		 WHERE project = ? AND queue = ? AND id = ? AND claim_id = ? AND claim_expires_at > ?`,
		project, queue, id, claimID, d.clock.Now().UnixNano())
	return Error.Wrap(err)
}

// BulkDelete implements store.Messages.
func (m *messages) BulkDelete(ctx context.Context, project, queue string, ids []string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if len(ids) == 0 {
		return nil
	}

	args := []interface{}{project, queue}
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	_, err = m.root().db.ExecContext(ctx,
		`DELETE FROM messages WHERE project = ? AND queue = ? AND id IN (`+placeholders+`)`,
		args...)
	return Error.Wrap(err)
}

// Pop implements store.Messages.
func (m *messages) Pop(ctx context.Context, project, queue string, limit int) (popped []*store.Message, err error) {
	defer mon.Task()(&ctx)(&err)

	d := m.root()
	nanos := d.clock.Now().UnixNano()
	popped = []*store.Message{}

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+messageColumns+` FROM messages
			 WHERE project = ? AND queue = ? AND `+visibleCond+`
			 ORDER BY marker LIMIT ?`,
			project, queue, nanos, nanos, limit)
		if err != nil {
			return Error.Wrap(err)
		}
		for rows.Next() {
			msg, err := scanMessage(rows, project, queue)
			if err != nil {
				return errs.Combine(err, rows.Close())
			}
			popped = append(popped, msg)
		}
		if err := errs.Combine(rows.Err(), rows.Close()); err != nil {
			return Error.Wrap(err)
		}

		for _, msg := range popped {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM messages WHERE project = ? AND queue = ? AND marker = ?`,
				project, queue, msg.Marker); err != nil {
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

	var order string
	switch sort {
	case store.SortAscending:
		order = "ASC"
	case store.SortDescending:
		order = "DESC"
	default:
		return nil, store.ErrInvariant.New("invalid sort order %d", sort)
	}

	d := m.root()
	nanos := d.clock.Now().UnixNano()

	msg, err := scanMessage(d.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE project = ? AND queue = ? AND `+visibleCond+`
		 ORDER BY marker `+order+` LIMIT 1`,
		project, queue, nanos, nanos), project, queue)
	if err != nil {
		if store.ErrMessageDoesNotExist.Has(err) {
			return nil, store.ErrQueueIsEmpty.New("%s/%s", project, queue)
		}
		return nil, err
	}
	return msg, nil
}
