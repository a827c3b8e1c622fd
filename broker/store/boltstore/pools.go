// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package boltstore

import (
	"bytes"
	"context"

	"github.com/boltdb/bolt"

	"github.com/courier-mq/courier/broker/store"
)

type pools DB

func (p *pools) root() *DB { return (*DB)(p) }

// Register implements store.Pools.
func (p *pools) Register(ctx context.Context, pool *store.Pool) (err error) {
	defer mon.Task()(&ctx)(&err)

	data, err := encode(&poolRecord{URI: pool.URI, Weight: pool.Weight, Group: pool.Group})
	if err != nil {
		return err
	}
	return p.root().update(ctx, func(tx *bolt.Tx) error {
		return Error.Wrap(tx.Bucket(poolsBucket).Put([]byte(pool.ID), data))
	})
}

// Get implements store.Pools.
func (p *pools) Get(ctx context.Context, id string) (_ *store.Pool, err error) {
	defer mon.Task()(&ctx)(&err)

	var pool *store.Pool
	err = p.root().view(ctx, func(tx *bolt.Tx) error {
		data := tx.Bucket(poolsBucket).Get([]byte(id))
		if data == nil {
			return store.ErrPoolDoesNotExist.New("%s", id)
		}
		var rec poolRecord
		if err := decode(data, &rec); err != nil {
			return err
		}
		pool = &store.Pool{ID: id, URI: rec.URI, Weight: rec.Weight, Group: rec.Group}
		return nil
	})
	return pool, err
}

// List implements store.Pools.
func (p *pools) List(ctx context.Context) (_ []*store.Pool, err error) {
	defer mon.Task()(&ctx)(&err)

	list := []*store.Pool{}
	err = p.root().view(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(poolsBucket).ForEach(func(key, data []byte) error {
			var rec poolRecord
			if err := decode(data, &rec); err != nil {
				return err
			}
			list = append(list, &store.Pool{
				ID:     string(key),
				URI:    rec.URI,
				Weight: rec.Weight,
				Group:  rec.Group,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Remove implements store.Pools.
func (p *pools) Remove(ctx context.Context, id string) (err error) {
	defer mon.Task()(&ctx)(&err)

	return p.root().update(ctx, func(tx *bolt.Tx) error {
		return Error.Wrap(tx.Bucket(poolsBucket).Delete([]byte(id)))
	})
}

type catalogue DB

func (c *catalogue) root() *DB { return (*DB)(c) }

// Insert implements store.Catalogue.
func (c *catalogue) Insert(ctx context.Context, project, queue, poolID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	return c.root().update(ctx, func(tx *bolt.Tx) error {
		return Error.Wrap(tx.Bucket(catalogueBucket).Put(scopeKey(project, queue), []byte(poolID)))
	})
}

// Get implements store.Catalogue.
func (c *catalogue) Get(ctx context.Context, project, queue string) (poolID string, ok bool, err error) {
	defer mon.Task()(&ctx)(&err)

	err = c.root().view(ctx, func(tx *bolt.Tx) error {
		data := tx.Bucket(catalogueBucket).Get(scopeKey(project, queue))
		if data == nil {
			return nil
		}
		poolID, ok = string(data), true
		return nil
	})
	return poolID, ok, err
}

// List implements store.Catalogue.
func (c *catalogue) List(ctx context.Context, project string) (_ []*store.CatalogueEntry, err error) {
	defer mon.Task()(&ctx)(&err)

	entries := []*store.CatalogueEntry{}
	prefix := scopeKey(project, "")

	err = c.root().view(ctx, func(tx *bolt.Tx) error {
		cursor := tx.Bucket(catalogueBucket).Cursor()
		for key, data := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, data = cursor.Next() {
			entries = append(entries, &store.CatalogueEntry{
				Project: project,
				Queue:   string(key[len(prefix):]),
				PoolID:  string(data),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Delete implements store.Catalogue.
func (c *catalogue) Delete(ctx context.Context, project, queue string) (err error) {
	defer mon.Task()(&ctx)(&err)

	return c.root().update(ctx, func(tx *bolt.Tx) error {
		return Error.Wrap(tx.Bucket(catalogueBucket).Delete(scopeKey(project, queue)))
	})
}

// DropAll implements store.Catalogue.
func (c *catalogue) DropAll(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	return c.root().update(ctx, func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(catalogueBucket); err != nil {
			return Error.Wrap(err)
		}
		_, err := tx.CreateBucket(catalogueBucket)
		return Error.Wrap(err)
	})
}
