// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package sqlstore

import (
	"context"
	"database/sql"

	"github.com/zeebo/errs"

	"github.com/courier-mq/courier/broker/store"
)

type queues DB

func (q *queues) root() *DB { return (*DB)(q) }

// Create implements store.Queues.
func (q *queues) Create(ctx context.Context, project, name string, metadata map[string]interface{}) (created bool, err error) {
	defer mon.Task()(&ctx)(&err)

	meta, err := encodeMetadata(metadata)
	if err != nil {
		return false, err
	}

	d := q.root()
	now := d.clock.Now().UnixNano()
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM queues WHERE project = ? AND name = ?`,
			project, name).Scan(&exists)
		if err != nil {
			return Error.Wrap(err)
		}

		if exists > 0 {
			_, err = tx.ExecContext(ctx,
				`UPDATE queues SET metadata = ? WHERE project = ? AND name = ?`,
				meta, project, name)
			return Error.Wrap(err)
		}

		created = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO queues (project, name, metadata, created_at) VALUES (?, ?, ?, ?)`,
			project, name, meta, now); err != nil {
			return Error.Wrap(err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO counters (project, name, value, last_modified) VALUES (?, ?, 1, ?)`,
			project, name, now)
		return Error.Wrap(err)
	})
	return created, err
}

// ensure creates the queue with empty metadata when missing.
func (q *queues) ensure(ctx context.Context, project, name string) error {
	d := q.root()
	now := d.clock.Now().UnixNano()
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO queues (project, name, metadata, created_at) VALUES (?, ?, NULL, ?)`,
			project, name, now)
		if err != nil {
			return Error.Wrap(err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return Error.Wrap(err)
		}
		if inserted == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO counters (project, name, value, last_modified) VALUES (?, ?, 1, ?)`,
			project, name, now)
		return Error.Wrap(err)
	})
}

// Get implements store.Queues.
func (q *queues) Get(ctx context.Context, project, name string) (_ *store.Queue, err error) {
	defer mon.Task()(&ctx)(&err)

	d := q.root()
	var (
		meta      []byte
		createdAt int64
	)
	err = d.db.QueryRowContext(ctx,
		`SELECT metadata, created_at FROM queues WHERE project = ? AND name = ?`,
		project, name).Scan(&meta, &createdAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrQueueDoesNotExist.New("%s/%s", project, name)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	metadata, err := decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	return &store.Queue{
		Project:   project,
		Name:      name,
		Metadata:  metadata,
		CreatedAt: timeFromNanos(createdAt),
	}, nil
}

// SetMetadata implements store.Queues.
func (q *queues) SetMetadata(ctx context.Context, project, name string, metadata map[string]interface{}) (err error) {
	defer mon.Task()(&ctx)(&err)

	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}

	res, err := q.root().db.ExecContext(ctx,
		`UPDATE queues SET metadata = ? WHERE project = ? AND name = ?`,
		meta, project, name)
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return store.ErrQueueDoesNotExist.New("%s/%s", project, name)
	}
	return nil
}

// Exists implements store.Queues.
func (q *queues) Exists(ctx context.Context, project, name string) (exists bool, err error) {
	defer mon.Task()(&ctx)(&err)

	var count int
	err = q.root().db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queues WHERE project = ? AND name = ?`,
		project, name).Scan(&count)
	if err != nil {
		return false, Error.Wrap(err)
	}
	return count > 0, nil
}

// List implements store.Queues.
func (q *queues) List(ctx context.Context, project, marker string, limit int) (_ *store.QueuePage, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := q.root().db.QueryContext(ctx,
		`SELECT name, metadata, created_at FROM queues
		 WHERE project = ? AND name > ? ORDER BY name LIMIT ?`,
		project, marker, limit)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	page := &store.QueuePage{Queues: []*store.Queue{}}
	for rows.Next() {
		var (
			name      string
			meta      []byte
			createdAt int64
		)
		if err := rows.Scan(&name, &meta, &createdAt); err != nil {
			return nil, Error.Wrap(err)
		}
		metadata, err := decodeMetadata(meta)
		if err != nil {
			return nil, err
		}
		page.Queues = append(page.Queues, &store.Queue{
			Project:   project,
			Name:      name,
			Metadata:  metadata,
			CreatedAt: timeFromNanos(createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(err)
	}

	if len(page.Queues) > 0 {
		page.NextMarker = page.Queues[len(page.Queues)-1].Name
	}
	return page, nil
}

// Delete implements store.Queues.
func (q *queues) Delete(ctx context.Context, project, name string) (err error) {
	defer mon.Task()(&ctx)(&err)

	return q.root().withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM messages WHERE project = ? AND queue = ?`,
			`DELETE FROM claims WHERE project = ? AND queue = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, project, name); err != nil {
				return Error.Wrap(err)
			}
		}
		for _, stmt := range []string{
			`DELETE FROM queues WHERE project = ? AND name = ?`,
			`DELETE FROM counters WHERE project = ? AND name = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, project, name); err != nil {
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
	exists, err := q.Exists(ctx, project, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrQueueDoesNotExist.New("%s/%s", project, name)
	}

	now := d.clock.Now()
	nanos := now.UnixNano()
	stats := &store.QueueStats{}

	err = d.db.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN claim_id = '' OR claim_expires_at <= ? THEN 1 END),
			COUNT(CASE WHEN claim_id != '' AND claim_expires_at > ? THEN 1 END)
		 FROM messages
		 WHERE project = ? AND queue = ? AND `+unexpiredCond,
		nanos, nanos, project, name, nanos).Scan(&stats.Free, &stats.Claimed)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	stats.Total = stats.Free + stats.Claimed

	for _, dir := range []struct {
		order string
		ref   **store.MessageRef
	}{
		{"ASC", &stats.Oldest},
		{"DESC", &stats.Newest},
	} {
		msg, err := scanMessage(d.db.QueryRowContext(ctx,
			`SELECT `+messageColumns+` FROM messages
			 WHERE project = ? AND queue = ? AND `+visibleCond+`
			 ORDER BY marker `+dir.order+` LIMIT 1`,
			project, name, nanos, nanos), project, name)
		if err != nil {
			if store.ErrMessageDoesNotExist.Has(err) {
				continue
			}
			return nil, err
		}
		*dir.ref = &store.MessageRef{
			ID:        msg.ID,
			Age:       msg.Age(now),
			CreatedAt: msg.CreatedAt,
		}
	}
	return stats, nil
}
