// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package sqlstore

import (
	"context"

	"github.com/zeebo/errs"

	"github.com/courier-mq/courier/broker/store"
)

type pools DB

func (p *pools) root() *DB { return (*DB)(p) }

// Register implements store.Pools.
func (p *pools) Register(ctx context.Context, pool *store.Pool) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = p.root().db.ExecContext(ctx,
		`INSERT INTO pools (id, uri, weight, grp) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET uri = excluded.uri, weight = excluded.weight, grp = excluded.grp`,
		pool.ID, pool.URI, pool.Weight, pool.Group)
	return Error.Wrap(err)
}

// Get implements store.Pools.
func (p *pools) Get(ctx context.Context, id string) (_ *store.Pool, err error) {
	defer mon.Task()(&ctx)(&err)

	pool := &store.Pool{ID: id}
	err = p.root().db.QueryRowContext(ctx,
		`SELECT uri, weight, grp FROM pools WHERE id = ?`, id).
		Scan(&pool.URI, &pool.Weight, &pool.Group)
	if err != nil {
		if isNoRows(err) {
			return nil, store.ErrPoolDoesNotExist.New("%s", id)
		}
		return nil, Error.Wrap(err)
	}
	return pool, nil
}

// List implements store.Pools.
func (p *pools) List(ctx context.Context) (_ []*store.Pool, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := p.root().db.QueryContext(ctx,
		`SELECT id, uri, weight, grp FROM pools ORDER BY id`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	list := []*store.Pool{}
	for rows.Next() {
		pool := &store.Pool{}
		if err := rows.Scan(&pool.ID, &pool.URI, &pool.Weight, &pool.Group); err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(err)
	}
	return list, nil
}

// Remove implements store.Pools.
func (p *pools) Remove(ctx context.Context, id string) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = p.root().db.ExecContext(ctx, `DELETE FROM pools WHERE id = ?`, id)
	return Error.Wrap(err)
}

type catalogue DB

func (c *catalogue) root() *DB { return (*DB)(c) }

// Insert implements store.Catalogue.
func (c *catalogue) Insert(ctx context.Context, project, queue, poolID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = c.root().db.ExecContext(ctx,
		`INSERT INTO catalogue (project, queue, pool_id) VALUES (?, ?, ?)
		 ON CONFLICT (project, queue) DO UPDATE SET pool_id = excluded.pool_id`,
		project, queue, poolID)
	return Error.Wrap(err)
}

// Get implements store.Catalogue.
func (c *catalogue) Get(ctx context.Context, project, queue string) (poolID string, ok bool, err error) {
	defer mon.Task()(&ctx)(&err)

	err = c.root().db.QueryRowContext(ctx,
		`SELECT pool_id FROM catalogue WHERE project = ? AND queue = ?`,
		project, queue).Scan(&poolID)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, Error.Wrap(err)
	}
	return poolID, true, nil
}

// List implements store.Catalogue.
func (c *catalogue) List(ctx context.Context, project string) (_ []*store.CatalogueEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := c.root().db.QueryContext(ctx,
		`SELECT queue, pool_id FROM catalogue WHERE project = ? ORDER BY queue`, project)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	entries := []*store.CatalogueEntry{}
	for rows.Next() {
		entry := &store.CatalogueEntry{Project: project}
		if err := rows.Scan(&entry.Queue, &entry.PoolID); err != nil {
			return nil, Error.Wrap(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(err)
	}
	return entries, nil
}

// Delete implements store.Catalogue.
func (c *catalogue) Delete(ctx context.Context, project, queue string) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = c.root().db.ExecContext(ctx,
		`DELETE FROM catalogue WHERE project = ? AND queue = ?`, project, queue)
	return Error.Wrap(err)
}

// DropAll implements store.Catalogue.
func (c *catalogue) DropAll(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = c.root().db.ExecContext(ctx, `DELETE FROM catalogue`)
	return Error.Wrap(err)
}
