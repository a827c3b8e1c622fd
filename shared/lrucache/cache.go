// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Package lrucache provides a size-bounded cache with entry expiration and
// single-flight loading, used for catalogue lookups in the pooling router.
package lrucache

import (
	"container/list"
	"sync"
	"time"

	"github.com/spacemonkeygo/monkit/v3"

	"github.com/courier-mq/courier/shared/clock"
)

var mon = monkit.Package()

// Options controls capacity and the expiration policy.
type Options struct {
	// Expiration invalidates an entry after this duration regardless of
	// use. Non-positive means entries never expire.
	Expiration time.Duration

	// Capacity is how many entries to keep; least recently used entries
	// are evicted first. Non-positive disables caching entirely.
	Capacity int

	// Name tags cache hit/miss events in monkit.
	Name string

	// Clock defaults to the system clock.
	Clock clock.Clock
}

type entry[T any] struct {
	once   sync.Once
	when   time.Time
	order  *list.Element
	value  T
	loaded bool
}

// Cache caches values for string keys with time based expiration and LRU
// eviction. Concurrent Get calls for the same missing key share one load.
type Cache[T any] struct {
	mu    sync.Mutex
	opts  Options
	data  map[string]*entry[T]
	order *list.List
}

// New constructs a Cache with the given options.
func New[T any](opts Options) *Cache[T] {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	return &Cache[T]{
		opts:  opts,
		data:  make(map[string]*entry[T], opts.Capacity),
		order: list.New(),
	}
}

// Get returns the cached value for key, or calls load and caches the result.
// A load error is not cached; later calls retry.
func (c *Cache[T]) Get(key string, load func() (T, error)) (value T, err error) {
	if c.opts.Capacity <= 0 {
		c.event(false)
		return load()
	}

	for {
		c.mu.Lock()

		state, ok := c.data[key]
		switch {
		case !ok:
			for len(c.data) >= c.opts.Capacity {
				back := c.order.Back()
				delete(c.data, back.Value.(string))
				c.order.Remove(back)
			}
			state = &entry[T]{
				when:  c.opts.Clock.Now(),
				order: c.order.PushFront(key),
			}
			c.data[key] = state

		case c.expired(state):
			delete(c.data, key)
			c.order.Remove(state.order)
			c.mu.Unlock()
			continue

		default:
			c.order.MoveToFront(state.order)
		}

		c.mu.Unlock()

		called := false
		state.once.Do(func() {
			called = true
			value, err = load()
			if err == nil {
				// Only assign on success so waiters retry failed loads.
				state.value = value
				state.loaded = true
			} else {
				c.mu.Lock()
				if c.data[key] == state {
					delete(c.data, key)
					c.order.Remove(state.order)
				}
				c.mu.Unlock()
			}
		})

		if called || state.loaded {
			c.event(!called)
			return state.value, err
		}
	}
}

// GetCached returns the value for key if present and unexpired.
func (c *Cache[T]) GetCached(key string) (value T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, exists := c.data[key]
	if !exists || !state.loaded || c.expired(state) {
		return value, false
	}
	c.order.MoveToFront(state.order)
	return state.value, true
}

// Delete removes key from the cache if present.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.data[key]
	if !ok {
		return
	}
	delete(c.data, key)
	c.order.Remove(state.order)
}

func (c *Cache[T]) expired(state *entry[T]) bool {
	return c.opts.Expiration > 0 &&
		c.opts.Clock.Now().Sub(state.when) > c.opts.Expiration
}

func (c *Cache[T]) event(hit bool) {
	if c.opts.Name == "" {
		return
	}
	tag := monkit.NewSeriesTag("name", c.opts.Name)
	if hit {
		mon.Event("cache_hit", tag)
	} else {
		mon.Event("cache_miss", tag)
	}
}
