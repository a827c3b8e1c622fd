// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package pooling_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/courier-mq/courier/broker/pooling"
	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/broker/store/boltstore"
	"github.com/courier-mq/courier/shared/clock"
)

type routerFixture struct {
	ctx     context.Context
	control store.DB
	router  *pooling.Router
	clk     *clock.Fake

	mu    sync.Mutex
	opens []string
}

func newRouterFixture(t *testing.T, poolWeights map[string]int) *routerFixture {
	dir := t.TempDir()
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	log := zaptest.NewLogger(t)

	control, err := boltstore.Open(log.Named("control"),
		filepath.Join(dir, "control.db"), boltstore.Options{Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { _ = control.Close() })

	f := &routerFixture{ctx: ctx, control: control, clk: clk}

	for id, weight := range poolWeights {
		require.NoError(t, control.Pools().Register(ctx, &store.Pool{
			ID:     id,
			URI:    "bolt://" + filepath.Join(dir, id+".db"),
			Weight: weight,
		}))
	}

	f.router = pooling.NewRouter(log.Named("router"), control, pooling.Options{
		Clock: clk,
		OpenStore: func(log *zap.Logger, uri string, clk clock.Clock) (store.DB, error) {
			f.mu.Lock()
			f.opens = append(f.opens, uri)
			f.mu.Unlock()
			return pooling.OpenStore(log, uri, clk)
		},
	})
	t.Cleanup(func() { _ = f.router.Close() })
	return f
}

func TestRouterPlacement(t *testing.T) {
	f := newRouterFixture(t, map[string]int{"pool-a": 1, "pool-b": 1})

	created, err := f.router.Queues().Create(f.ctx, "p1", "orders", nil)
	require.NoError(t, err)
	assert.True(t, created)

	// The placement is persisted in the catalogue.
	poolID, ok, err := f.control.Catalogue().Get(f.ctx, "p1", "orders")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, []string{"pool-a", "pool-b"}, poolID)

	// Every operation on the queue reaches the same backend.
	client := uuid.New()
	ids, err := f.router.Messages().Post(f.ctx, "p1", "orders", client,
		[]*store.Message{{Body: "hello", TTL: 3600}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	msg, err := f.router.Messages().Get(f.ctx, "p1", "orders", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Body)

	claim, msgs, err := f.router.Claims().Create(f.ctx, "p1", "orders", 300, 60, 10)
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Len(t, msgs, 1)

	// The queue never leaks onto the control store.
	exists, err := f.control.Queues().Exists(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRouterImplicitPlacementOnPost(t *testing.T) {
	f := newRouterFixture(t, map[string]int{"pool-a": 1})

	ids, err := f.router.Messages().Post(f.ctx, "p1", "fresh", uuid.New(),
		[]*store.Message{{Body: "first", TTL: 3600}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	poolID, ok, err := f.control.Catalogue().Get(f.ctx, "p1", "fresh")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pool-a", poolID)
}

func TestRouterUnmappedQueue(t *testing.T) {
	f := newRouterFixture(t, map[string]int{"pool-a": 1})
	client := uuid.New()

	page, err := f.router.Messages().List(f.ctx, "p1", "ghost", client, store.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)

	_, err = f.router.Messages().Get(f.ctx, "p1", "ghost", "some-id")
	assert.True(t, store.ErrMessageDoesNotExist.Has(err))

	exists, err := f.router.Queues().Exists(f.ctx, "p1", "ghost")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = f.router.Queues().Stats(f.ctx, "p1", "ghost")
	assert.True(t, store.ErrQueueDoesNotExist.Has(err))

	claim, msgs, err := f.router.Claims().Create(f.ctx, "p1", "ghost", 300, 60, 10)
	require.NoError(t, err)
	assert.Nil(t, claim)
	assert.Empty(t, msgs)

	require.NoError(t, f.router.Queues().Delete(f.ctx, "p1", "ghost"))
	require.NoError(t, f.router.Messages().Delete(f.ctx, "p1", "ghost", "some-id", ""))
}

func TestRouterQueueDelete(t *testing.T) {
	f := newRouterFixture(t, map[string]int{"pool-a": 1})

	_, err := f.router.Queues().Create(f.ctx, "p1", "orders", nil)
	require.NoError(t, err)

	require.NoError(t, f.router.Queues().Delete(f.ctx, "p1", "orders"))

	_, ok, err := f.control.Catalogue().Get(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := f.router.Queues().Exists(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.False(t, exists)

	// Recreating places the queue again.
	created, err := f.router.Queues().Create(f.ctx, "p1", "orders", nil)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestRouterQueueList(t *testing.T) {
	f := newRouterFixture(t, map[string]int{"pool-a": 1, "pool-b": 1})

	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err := f.router.Queues().Create(f.ctx, "p1", name, nil)
		require.NoError(t, err)
	}

	page, err := f.router.Queues().List(f.ctx, "p1", "", 2)
	require.NoError(t, err)
	require.Len(t, page.Queues, 2)
	assert.Equal(t, "alpha", page.Queues[0].Name)
	assert.Equal(t, "beta", page.Queues[1].Name)

	page, err = f.router.Queues().List(f.ctx, "p1", page.NextMarker, 10)
	require.NoError(t, err)
	require.Len(t, page.Queues, 1)
	assert.Equal(t, "gamma", page.Queues[0].Name)
}

func TestRouterNoPools(t *testing.T) {
	f := newRouterFixture(t, nil)

	_, err := f.router.Queues().Create(f.ctx, "p1", "orders", nil)
	assert.True(t, store.ErrPoolDoesNotExist.Has(err))
}

func TestRouterBackendOpenedOnce(t *testing.T) {
	f := newRouterFixture(t, map[string]int{"pool-a": 1})
	client := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := f.router.Messages().Post(f.ctx, "p1", "orders", client,
			[]*store.Message{{Body: int64(i), TTL: 3600}})
		require.NoError(t, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.opens, 1)
}

func TestRouterControlPlane(t *testing.T) {
	f := newRouterFixture(t, map[string]int{"pool-a": 1})

	// Pools and catalogue administration bypass routing entirely.
	pools, err := f.router.Pools().List(f.ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "pool-a", pools[0].ID)

	require.NoError(t, f.router.Catalogue().Insert(f.ctx, "p1", "manual", "pool-a"))
	poolID, ok, err := f.control.Catalogue().Get(f.ctx, "p1", "manual")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pool-a", poolID)

	require.NoError(t, f.router.Ping(f.ctx))
}
