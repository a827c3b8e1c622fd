// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Package pooling shards queues across backend stores. A catalogue on the
// control store maps (project, queue) to a pool id; the Router implements
// store.DB by resolving that mapping per call and delegating to the pool's
// backend. Control-plane contracts are served from the control store
// directly.
package pooling

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/shared/clock"
	"github.com/courier-mq/courier/shared/lrucache"
)

var (
	mon = monkit.Package()

	// Error is the default pooling error class.
	Error = errs.Class("pooling")
)

// errNotMapped marks queues without a catalogue entry. It never leaves the
// router; each operation translates it into its own empty or missing result.
var errNotMapped = errs.Class("queue not mapped")

// Options tunes the router.
type Options struct {
	// CacheCapacity bounds the catalogue cache.
	CacheCapacity int

	// CacheExpiration bounds how long catalogue lookups, including
	// negative ones, may be served from memory.
	CacheExpiration time.Duration

	// Clock defaults to the system clock.
	Clock clock.Clock

	// OpenStore opens a backend from a pool URI; defaults to OpenStore.
	OpenStore func(log *zap.Logger, uri string, clk clock.Clock) (store.DB, error)
}

// Router routes storage calls to backend pools. It implements store.DB.
type Router struct {
	log     *zap.Logger
	control store.DB
	clock   clock.Clock
	open    func(log *zap.Logger, uri string, clk clock.Clock) (store.DB, error)
	cache   *lrucache.Cache[string]

	mu       sync.Mutex
	rnd      *rand.Rand
	backends map[string]store.DB
}

// NewRouter wires a router over the control store. The control store stays
// owned by the caller; Close only closes backends the router opened.
func NewRouter(log *zap.Logger, control store.DB, opts Options) *Router {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.OpenStore == nil {
		opts.OpenStore = OpenStore
	}
	if opts.CacheCapacity == 0 {
		opts.CacheCapacity = 1024
	}
	if opts.CacheExpiration == 0 {
		opts.CacheExpiration = 10 * time.Second
	}

	return &Router{
		log:     log,
		control: control,
		clock:   opts.Clock,
		open:    opts.OpenStore,
		cache: lrucache.New[string](lrucache.Options{
			Capacity:   opts.CacheCapacity,
			Expiration: opts.CacheExpiration,
			Name:       "catalogue",
			Clock:      opts.Clock,
		}),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		backends: map[string]store.DB{},
	}
}

// Queues implements store.DB.
func (r *Router) Queues() store.Queues { return &routedQueues{r} }

// Messages implements store.DB.
func (r *Router) Messages() store.Messages { return &routedMessages{r} }

// Claims implements store.DB.
func (r *Router) Claims() store.Claims { return &routedClaims{r} }

// Counters implements store.DB.
func (r *Router) Counters() store.Counters { return &routedCounters{r} }

// Pools implements store.DB; pool administration is control-plane.
func (r *Router) Pools() store.Pools { return r.control.Pools() }

// Catalogue implements store.DB; catalogue access is control-plane.
func (r *Router) Catalogue() store.Catalogue { return r.control.Catalogue() }

// Ping implements store.DB.
func (r *Router) Ping(ctx context.Context) error { return r.control.Ping(ctx) }

// Close closes every backend the router opened. The control store is left
// open for its owner.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var group errs.Group
	for id, backend := range r.backends {
		group.Add(backend.Close())
		delete(r.backends, id)
	}
	return group.Err()
}

func cacheKey(project, queue string) string {
	return project + "\x00" + queue
}

// resolve returns the backend holding the queue. With create set, queues
// without a placement get one assigned by weighted random choice; without
// it, errNotMapped is returned.
func (r *Router) resolve(ctx context.Context, project, queue string, create bool) (_ store.DB, err error) {
	defer mon.Task()(&ctx)(&err)

	key := cacheKey(project, queue)
	poolID, err := r.cache.Get(key, func() (string, error) {
		id, ok, err := r.control.Catalogue().Get(ctx, project, queue)
		if err != nil {
			return "", err
		}
		if !ok {
			// Cached as a negative entry until expiration.
			return "", nil
		}
		return id, nil
	})
	if err != nil {
		return nil, err
	}

	if poolID == "" {
		if !create {
			return nil, errNotMapped.New("%s/%s", project, queue)
		}
		poolID, err = r.place(ctx, project, queue)
		if err != nil {
			return nil, err
		}
		r.cache.Delete(key)
	}

	return r.backend(ctx, poolID)
}

// place assigns the queue to a pool and persists the catalogue entry.
func (r *Router) place(ctx context.Context, project, queue string) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	pools, err := r.control.Pools().List(ctx)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	pool, err := ChoosePool(pools, r.rnd)
	r.mu.Unlock()
	if err != nil {
		return "", err
	}

	if err := r.control.Catalogue().Insert(ctx, project, queue, pool.ID); err != nil {
		return "", err
	}
	r.log.Debug("queue placed",
		zap.String("project", project),
		zap.String("queue", queue),
		zap.String("pool", pool.ID))
	return pool.ID, nil
}

// backend returns the opened store for a pool, opening it on first use.
func (r *Router) backend(ctx context.Context, poolID string) (store.DB, error) {
	r.mu.Lock()
	if backend, ok := r.backends[poolID]; ok {
		r.mu.Unlock()
		return backend, nil
	}
	r.mu.Unlock()

	pool, err := r.control.Pools().Get(ctx, poolID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if backend, ok := r.backends[poolID]; ok {
		return backend, nil
	}
	backend, err := r.open(r.log.Named("pool:"+poolID), pool.URI, r.clock)
	if err != nil {
		return nil, err
	}
	r.backends[poolID] = backend
	return backend, nil
}

// evict drops the cached placement for a queue.
func (r *Router) evict(project, queue string) {
	r.cache.Delete(cacheKey(project, queue))
}

type routedQueues struct{ r *Router }

func (q *routedQueues) Create(ctx context.Context, project, name string, metadata map[string]interface{}) (bool, error) {
	backend, err := q.r.resolve(ctx, project, name, true)
	if err != nil {
		return false, err
	}
	return backend.Queues().Create(ctx, project, name, metadata)
}

func (q *routedQueues) Get(ctx context.Context, project, name string) (*store.Queue, error) {
	backend, err := q.r.resolve(ctx, project, name, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return nil, store.ErrQueueDoesNotExist.New("%s/%s", project, name)
		}
		return nil, err
	}
	return backend.Queues().Get(ctx, project, name)
}

func (q *routedQueues) SetMetadata(ctx context.Context, project, name string, metadata map[string]interface{}) error {
	backend, err := q.r.resolve(ctx, project, name, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return store.ErrQueueDoesNotExist.New("%s/%s", project, name)
		}
		return err
	}
	return backend.Queues().SetMetadata(ctx, project, name, metadata)
}

func (q *routedQueues) Exists(ctx context.Context, project, name string) (bool, error) {
	backend, err := q.r.resolve(ctx, project, name, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return false, nil
		}
		return false, err
	}
	return backend.Queues().Exists(ctx, project, name)
}

// List serves queue listings from the catalogue, which is authoritative for
// placement, so listing stays consistent across shards.
func (q *routedQueues) List(ctx context.Context, project, marker string, limit int) (*store.QueuePage, error) {
	entries, err := q.r.control.Catalogue().List(ctx, project)
	if err != nil {
		return nil, err
	}

	page := &store.QueuePage{Queues: []*store.Queue{}}
	for _, entry := range entries {
		if entry.Queue <= marker && marker != "" {
			continue
		}
		if len(page.Queues) >= limit {
			break
		}
		backend, err := q.r.backend(ctx, entry.PoolID)
		if err != nil {
			return nil, err
		}
		queue, err := backend.Queues().Get(ctx, project, entry.Queue)
		if err != nil {
			if store.ErrQueueDoesNotExist.Has(err) {
				continue
			}
			return nil, err
		}
		page.Queues = append(page.Queues, queue)
	}
	if len(page.Queues) > 0 {
		page.NextMarker = page.Queues[len(page.Queues)-1].Name
	}
	return page, nil
}

func (q *routedQueues) Delete(ctx context.Context, project, name string) error {
	backend, err := q.r.resolve(ctx, project, name, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return nil
		}
		return err
	}
	if err := backend.Queues().Delete(ctx, project, name); err != nil {
		return err
	}
	if err := q.r.control.Catalogue().Delete(ctx, project, name); err != nil {
		return err
	}
	q.r.evict(project, name)
	return nil
}

func (q *routedQueues) Stats(ctx context.Context, project, name string) (*store.QueueStats, error) {
	backend, err := q.r.resolve(ctx, project, name, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return nil, store.ErrQueueDoesNotExist.New("%s/%s", project, name)
		}
		return nil, err
	}
	return backend.Queues().Stats(ctx, project, name)
}

type routedMessages struct{ r *Router }

func (m *routedMessages) Post(ctx context.Context, project, queue string, clientID uuid.UUID, msgs []*store.Message) ([]string, error) {
	backend, err := m.r.resolve(ctx, project, queue, true)
	if err != nil {
		return nil, err
	}
	return backend.Messages().Post(ctx, project, queue, clientID, msgs)
}

func (m *routedMessages) List(ctx context.Context, project, queue string, clientID uuid.UUID, opts store.ListOptions) (*store.MessagePage, error) {
	backend, err := m.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return &store.MessagePage{Messages: []*store.Message{}}, nil
		}
		return nil, err
	}
	return backend.Messages().List(ctx, project, queue, clientID, opts)
}

func (m *routedMessages) Get(ctx context.Context, project, queue, id string) (*store.Message, error) {
	backend, err := m.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return nil, store.ErrMessageDoesNotExist.New("%s", id)
		}
		return nil, err
	}
	return backend.Messages().Get(ctx, project, queue, id)
}

func (m *routedMessages) BulkGet(ctx context.Context, project, queue string, ids []string) ([]*store.Message, error) {
	backend, err := m.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return []*store.Message{}, nil
		}
		return nil, err
	}
	return backend.Messages().BulkGet(ctx, project, queue, ids)
}

func (m *routedMessages) Delete(ctx context.Context, project, queue, id, claimID string) error {
	backend, err := m.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return nil
		}
		return err
	}
	return backend.Messages().Delete(ctx, project, queue, id, claimID)
}

func (m *routedMessages) BulkDelete(ctx context.Context, project, queue string, ids []string) error {
	backend, err := m.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return nil
		}
		return err
	}
	return backend.Messages().BulkDelete(ctx, project, queue, ids)
}

func (m *routedMessages) Pop(ctx context.Context, project, queue string, limit int) ([]*store.Message, error) {
	backend, err := m.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return []*store.Message{}, nil
		}
		return nil, err
	}
	return backend.Messages().Pop(ctx, project, queue, limit)
}

func (m *routedMessages) First(ctx context.Context, project, queue string, sort int) (*store.Message, error) {
	backend, err := m.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return nil, store.ErrQueueIsEmpty.New("%s/%s", project, queue)
		}
		return nil, err
	}
	return backend.Messages().First(ctx, project, queue, sort)
}

type routedClaims struct{ r *Router }

func (c *routedClaims) Create(ctx context.Context, project, queue string, ttl, grace, limit int) (*store.Claim, []*store.Message, error) {
	backend, err := c.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return nil, []*store.Message{}, nil
		}
		return nil, nil, err
	}
	return backend.Claims().Create(ctx, project, queue, ttl, grace, limit)
}

func (c *routedClaims) Get(ctx context.Context, project, queue, id string) (*store.Claim, []*store.Message, error) {
	backend, err := c.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return nil, nil, store.ErrClaimDoesNotExist.New("%s", id)
		}
		return nil, nil, err
	}
	return backend.Claims().Get(ctx, project, queue, id)
}

func (c *routedClaims) Update(ctx context.Context, project, queue, id string, ttl int) error {
	backend, err := c.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return store.ErrClaimDoesNotExist.New("%s", id)
		}
		return err
	}
	return backend.Claims().Update(ctx, project, queue, id, ttl)
}

func (c *routedClaims) Delete(ctx context.Context, project, queue, id string) error {
	backend, err := c.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return nil
		}
		return err
	}
	return backend.Claims().Delete(ctx, project, queue, id)
}

type routedCounters struct{ r *Router }

func (c *routedCounters) Get(ctx context.Context, project, queue string) (int64, error) {
	backend, err := c.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return 0, store.ErrQueueDoesNotExist.New("%s/%s", project, queue)
		}
		return 0, err
	}
	return backend.Counters().Get(ctx, project, queue)
}

func (c *routedCounters) Increment(ctx context.Context, project, queue string, amount int64, window time.Duration) (int64, bool, error) {
	backend, err := c.r.resolve(ctx, project, queue, false)
	if err != nil {
		if errNotMapped.Has(err) {
			return 0, false, store.ErrQueueDoesNotExist.New("%s/%s", project, queue)
		}
		return 0, false, err
	}
	return backend.Counters().Increment(ctx, project, queue, amount, window)
}
