// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Package storetest runs the shared contract suite against a store.DB
// implementation. Every backend must pass the whole suite.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/shared/clock"
)

// NewDBFunc opens a fresh empty store driven by the given clock. The
// implementation registers its own cleanup on t.
type NewDBFunc func(t *testing.T, clk clock.Clock) store.DB

// run gives each subtest its own store and fake clock.
type fixture struct {
	ctx    context.Context
	db     store.DB
	clk    *clock.Fake
	client uuid.UUID
}

// RunTests runs the contract suite.
func RunTests(t *testing.T, newDB NewDBFunc) {
	run := func(name string, test func(t *testing.T, f fixture)) {
		t.Run(name, func(t *testing.T) {
			clk := clock.NewFake(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
			test(t, fixture{
				ctx:    context.Background(),
				db:     newDB(t, clk),
				clk:    clk,
				client: uuid.New(),
			})
		})
	}

	run("QueueLifecycle", testQueueLifecycle)
	run("QueueList", testQueueList)
	run("QueueDelete", testQueueDelete)
	run("QueueStats", testQueueStats)
	run("Counters", testCounters)
	run("CounterWindow", testCounterWindow)

	run("MessagePost", testMessagePost)
	run("MessageList", testMessageList)
	run("MessageListPaging", testMessageListPaging)
	run("MessageGet", testMessageGet)
	run("MessageExpiry", testMessageExpiry)
	run("MessageDelete", testMessageDelete)
	run("MessageBulk", testMessageBulk)
	run("MessagePop", testMessagePop)
	run("MessageFirst", testMessageFirst)

	run("ClaimCreate", testClaimCreate)
	run("ClaimExpiry", testClaimExpiry)
	run("ClaimUpdate", testClaimUpdate)
	run("ClaimDelete", testClaimDelete)
	run("ClaimGrace", testClaimGrace)
	run("ClaimConditionalDelete", testClaimConditionalDelete)

	run("Pools", testPools)
	run("Catalogue", testCatalogue)
}

// post inserts n one-hour messages and returns their ids.
func (f fixture) post(t *testing.T, project, queue string, n int) []string {
	msgs := make([]*store.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, &store.Message{
			Body: map[string]interface{}{"n": int64(i)},
			TTL:  3600,
		})
	}
	ids, err := f.db.Messages().Post(f.ctx, project, queue, f.client, msgs)
	require.NoError(t, err)
	require.Len(t, ids, n)
	return ids
}

// list pages every visible message with echo enabled.
func (f fixture) list(t *testing.T, project, queue string, opts store.ListOptions) *store.MessagePage {
	if opts.Limit == 0 {
		opts.Limit = 100
	}
	opts.Echo = true
	page, err := f.db.Messages().List(f.ctx, project, queue, f.client, opts)
	require.NoError(t, err)
	return page
}

func testQueueLifecycle(t *testing.T, f fixture) {
	created, err := f.db.Queues().Create(f.ctx, "p1", "orders", map[string]interface{}{"flavor": "vanilla"})
	require.NoError(t, err)
	assert.True(t, created)

	exists, err := f.db.Queues().Exists(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.True(t, exists)

	queue, err := f.db.Queues().Get(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", queue.Name)
	assert.Equal(t, "p1", queue.Project)
	assert.Equal(t, map[string]interface{}{"flavor": "vanilla"}, queue.Metadata)

	// Recreating replaces metadata and reports not-created.
	created, err = f.db.Queues().Create(f.ctx, "p1", "orders", map[string]interface{}{"flavor": "chocolate"})
	require.NoError(t, err)
	assert.False(t, created)

	queue, err = f.db.Queues().Get(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"flavor": "chocolate"}, queue.Metadata)

	require.NoError(t, f.db.Queues().SetMetadata(f.ctx, "p1", "orders", map[string]interface{}{"flavor": "mint"}))
	queue, err = f.db.Queues().Get(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"flavor": "mint"}, queue.Metadata)

	err = f.db.Queues().SetMetadata(f.ctx, "p1", "missing", nil)
	assert.True(t, store.ErrQueueDoesNotExist.Has(err))

	// Queues are project scoped.
	exists, err = f.db.Queues().Exists(f.ctx, "p2", "orders")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = f.db.Queues().Get(f.ctx, "p2", "orders")
	assert.True(t, store.ErrQueueDoesNotExist.Has(err))
}

func testQueueList(t *testing.T, f fixture) {
	for _, name := range []string{"alpha", "beta", "gamma", "delta"} {
		_, err := f.db.Queues().Create(f.ctx, "p1", name, nil)
		require.NoError(t, err)
	}
	_, err := f.db.Queues().Create(f.ctx, "p2", "other", nil)
	require.NoError(t, err)

	page, err := f.db.Queues().List(f.ctx, "p1", "", 2)
	require.NoError(t, err)
	require.Len(t, page.Queues, 2)
	assert.Equal(t, "alpha", page.Queues[0].Name)
	assert.Equal(t, "beta", page.Queues[1].Name)
	require.Equal(t, "beta", page.NextMarker)

	page, err = f.db.Queues().List(f.ctx, "p1", page.NextMarker, 10)
	require.NoError(t, err)
	require.Len(t, page.Queues, 2)
	assert.Equal(t, "delta", page.Queues[0].Name)
	assert.Equal(t, "gamma", page.Queues[1].Name)

	page, err = f.db.Queues().List(f.ctx, "p3", "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Queues)
	assert.Empty(t, page.NextMarker)
}

func testQueueDelete(t *testing.T, f fixture) {
	ids := f.post(t, "p1", "orders", 3)

	require.NoError(t, f.db.Queues().Delete(f.ctx, "p1", "orders"))

	exists, err := f.db.Queues().Exists(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = f.db.Messages().Get(f.ctx, "p1", "orders", ids[0])
	assert.True(t, store.ErrMessageDoesNotExist.Has(err))

	_, err = f.db.Counters().Get(f.ctx, "p1", "orders")
	assert.True(t, store.ErrQueueDoesNotExist.Has(err))

	// The counter restarts from scratch after recreation.
	newIDs := f.post(t, "p1", "orders", 1)
	msg, err := f.db.Messages().Get(f.ctx, "p1", "orders", newIDs[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(2), msg.Marker)

	// Deleting a missing queue succeeds.
	require.NoError(t, f.db.Queues().Delete(f.ctx, "p1", "missing"))
}

func testQueueStats(t *testing.T, f fixture) {
	_, err := f.db.Queues().Stats(f.ctx, "p1", "missing")
	assert.True(t, store.ErrQueueDoesNotExist.Has(err))

	_, err = f.db.Queues().Create(f.ctx, "p1", "orders", nil)
	require.NoError(t, err)

	stats, err := f.db.Queues().Stats(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Nil(t, stats.Oldest)
	assert.Nil(t, stats.Newest)

	ids := f.post(t, "p1", "orders", 5)

	_, _, err = f.db.Claims().Create(f.ctx, "p1", "orders", 300, 60, 2)
	require.NoError(t, err)

	stats, err = f.db.Queues().Stats(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Free)
	assert.Equal(t, int64(2), stats.Claimed)
	assert.Equal(t, int64(5), stats.Total)
	require.NotNil(t, stats.Oldest)
	require.NotNil(t, stats.Newest)
	assert.Equal(t, ids[2], stats.Oldest.ID)
	assert.Equal(t, ids[4], stats.Newest.ID)
}

func testCounters(t *testing.T, f fixture) {
	_, err := f.db.Counters().Get(f.ctx, "p1", "missing")
	assert.True(t, store.ErrQueueDoesNotExist.Has(err))

	_, err = f.db.Queues().Create(f.ctx, "p1", "orders", nil)
	require.NoError(t, err)

	value, err := f.db.Counters().Get(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)

	value, ok, err := f.db.Counters().Increment(f.ctx, "p1", "orders", 1, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), value)

	value, ok, err = f.db.Counters().Increment(f.ctx, "p1", "orders", 3, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), value)

	value, err = f.db.Counters().Get(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(5), value)
}

func testCounterWindow(t *testing.T, f fixture) {
	_, err := f.db.Queues().Create(f.ctx, "p1", "orders", nil)
	require.NoError(t, err)

	f.clk.Advance(time.Minute)
	value, ok, err := f.db.Counters().Increment(f.ctx, "p1", "orders", 1, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), value)

	// Inside the window the increment is refused and nothing changes.
	f.clk.Advance(10 * time.Second)
	value, ok, err = f.db.Counters().Increment(f.ctx, "p1", "orders", 1, 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(2), value)

	f.clk.Advance(30 * time.Second)
	value, ok, err = f.db.Counters().Increment(f.ctx, "p1", "orders", 1, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), value)
}

func testMessagePost(t *testing.T, f fixture) {
	// Posting creates the queue implicitly.
	ids := f.post(t, "p1", "orders", 3)

	exists, err := f.db.Queues().Exists(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.True(t, exists)

	seen := map[string]bool{}
	for i, id := range ids {
		require.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true

		msg, err := f.db.Messages().Get(f.ctx, "p1", "orders", id)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"n": int64(i)}, msg.Body)
		assert.Equal(t, f.client, msg.ClientID)

		// The first message of a fresh queue carries marker 2 and markers
		// are contiguous in input order.
		assert.Equal(t, uint64(2+i), msg.Marker)
	}
}

func testMessageList(t *testing.T, f fixture) {
	// A missing queue lists as empty.
	page := f.list(t, "p1", "missing", store.ListOptions{})
	assert.Empty(t, page.Messages)
	assert.Empty(t, page.NextMarker)

	ids := f.post(t, "p1", "orders", 3)

	page = f.list(t, "p1", "orders", store.ListOptions{})
	require.Len(t, page.Messages, 3)
	for i, msg := range page.Messages {
		assert.Equal(t, ids[i], msg.ID)
	}

	// Without echo the poster's own messages are hidden.
	noEcho, err := f.db.Messages().List(f.ctx, "p1", "orders", f.client, store.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, noEcho.Messages)

	other, err := f.db.Messages().List(f.ctx, "p1", "orders", uuid.New(), store.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, other.Messages, 3)

	// Claimed messages are hidden unless asked for.
	_, claimed, err := f.db.Claims().Create(f.ctx, "p1", "orders", 300, 60, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	page = f.list(t, "p1", "orders", store.ListOptions{})
	assert.Len(t, page.Messages, 2)

	page = f.list(t, "p1", "orders", store.ListOptions{IncludeClaimed: true})
	assert.Len(t, page.Messages, 3)
}

func testMessageListPaging(t *testing.T, f fixture) {
	ids := f.post(t, "p1", "orders", 5)

	page := f.list(t, "p1", "orders", store.ListOptions{Limit: 2})
	require.Len(t, page.Messages, 2)
	assert.Equal(t, ids[0], page.Messages[0].ID)
	assert.Equal(t, ids[1], page.Messages[1].ID)
	require.NotEmpty(t, page.NextMarker)

	page = f.list(t, "p1", "orders", store.ListOptions{Limit: 2, Marker: page.NextMarker})
	require.Len(t, page.Messages, 2)
	assert.Equal(t, ids[2], page.Messages[0].ID)
	assert.Equal(t, ids[3], page.Messages[1].ID)

	page = f.list(t, "p1", "orders", store.ListOptions{Limit: 2, Marker: page.NextMarker})
	require.Len(t, page.Messages, 1)
	assert.Equal(t, ids[4], page.Messages[0].ID)

	// An unknown marker yields an empty page, not an error.
	page = f.list(t, "p1", "orders", store.ListOptions{Marker: "bogus-marker"})
	assert.Empty(t, page.Messages)
}

func testMessageGet(t *testing.T, f fixture) {
	ids := f.post(t, "p1", "orders", 1)

	msg, err := f.db.Messages().Get(f.ctx, "p1", "orders", ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], msg.ID)

	_, err = f.db.Messages().Get(f.ctx, "p1", "orders", "nonexistent")
	assert.True(t, store.ErrMessageDoesNotExist.Has(err))

	// Another project cannot read the message.
	_, err = f.db.Messages().Get(f.ctx, "p2", "orders", ids[0])
	assert.True(t, store.ErrMessageDoesNotExist.Has(err))
}

func testMessageExpiry(t *testing.T, f fixture) {
	msgs := []*store.Message{{Body: "soon", TTL: 60}, {Body: "later", TTL: 3600}}
	ids, err := f.db.Messages().Post(f.ctx, "p1", "orders", f.client, msgs)
	require.NoError(t, err)

	f.clk.Advance(61 * time.Second)

	_, err = f.db.Messages().Get(f.ctx, "p1", "orders", ids[0])
	assert.True(t, store.ErrMessageDoesNotExist.Has(err))

	msg, err := f.db.Messages().Get(f.ctx, "p1", "orders", ids[1])
	require.NoError(t, err)
	assert.Equal(t, int64(61), msg.Age(f.clk.Now()))

	page := f.list(t, "p1", "orders", store.ListOptions{})
	require.Len(t, page.Messages, 1)
	assert.Equal(t, ids[1], page.Messages[0].ID)
}

func testMessageDelete(t *testing.T, f fixture) {
	ids := f.post(t, "p1", "orders", 2)

	require.NoError(t, f.db.Messages().Delete(f.ctx, "p1", "orders", ids[0], ""))
	_, err := f.db.Messages().Get(f.ctx, "p1", "orders", ids[0])
	assert.True(t, store.ErrMessageDoesNotExist.Has(err))

	// Deleting a missing message succeeds.
	require.NoError(t, f.db.Messages().Delete(f.ctx, "p1", "orders", ids[0], ""))
	require.NoError(t, f.db.Messages().Delete(f.ctx, "p1", "orders", "nonexistent", ""))
}

func testMessageBulk(t *testing.T, f fixture) {
	ids := f.post(t, "p1", "orders", 4)

	msgs, err := f.db.Messages().BulkGet(f.ctx, "p1", "orders", []string{ids[0], "nonexistent", ids[2]})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, ids[0], msgs[0].ID)
	assert.Equal(t, ids[2], msgs[1].ID)

	err = f.db.Messages().BulkDelete(f.ctx, "p1", "orders", []string{ids[0], ids[1], "nonexistent"})
	require.NoError(t, err)

	page := f.list(t, "p1", "orders", store.ListOptions{})
	require.Len(t, page.Messages, 2)
	assert.Equal(t, ids[2], page.Messages[0].ID)
	assert.Equal(t, ids[3], page.Messages[1].ID)
}

func testMessagePop(t *testing.T, f fixture) {
	ids := f.post(t, "p1", "orders", 3)

	popped, err := f.db.Messages().Pop(f.ctx, "p1", "orders", 2)
	require.NoError(t, err)
	require.Len(t, popped, 2)
	assert.Equal(t, ids[0], popped[0].ID)
	assert.Equal(t, ids[1], popped[1].ID)

	// Popped messages are gone.
	page := f.list(t, "p1", "orders", store.ListOptions{})
	require.Len(t, page.Messages, 1)
	assert.Equal(t, ids[2], page.Messages[0].ID)

	popped, err = f.db.Messages().Pop(f.ctx, "p1", "orders", 5)
	require.NoError(t, err)
	assert.Len(t, popped, 1)

	popped, err = f.db.Messages().Pop(f.ctx, "p1", "orders", 5)
	require.NoError(t, err)
	assert.Empty(t, popped)
}

func testMessageFirst(t *testing.T, f fixture) {
	_, err := f.db.Queues().Create(f.ctx, "p1", "orders", nil)
	require.NoError(t, err)

	_, err = f.db.Messages().First(f.ctx, "p1", "orders", store.SortAscending)
	assert.True(t, store.ErrQueueIsEmpty.Has(err))

	ids := f.post(t, "p1", "orders", 3)

	oldest, err := f.db.Messages().First(f.ctx, "p1", "orders", store.SortAscending)
	require.NoError(t, err)
	assert.Equal(t, ids[0], oldest.ID)

	newest, err := f.db.Messages().First(f.ctx, "p1", "orders", store.SortDescending)
	require.NoError(t, err)
	assert.Equal(t, ids[2], newest.ID)

	_, err = f.db.Messages().First(f.ctx, "p1", "orders", 0)
	assert.True(t, store.ErrInvariant.Has(err))
}

func testClaimCreate(t *testing.T, f fixture) {
	// Claiming an empty queue yields no claim and no messages.
	claim, msgs, err := f.db.Claims().Create(f.ctx, "p1", "orders", 300, 60, 10)
	require.NoError(t, err)
	assert.Nil(t, claim)
	assert.Empty(t, msgs)

	ids := f.post(t, "p1", "orders", 5)

	claim, msgs, err = f.db.Claims().Create(f.ctx, "p1", "orders", 300, 60, 3)
	require.NoError(t, err)
	require.NotNil(t, claim)
	require.Len(t, msgs, 3)
	assert.NotEmpty(t, claim.ID)
	assert.Equal(t, 300, claim.TTL)

	// Oldest visible messages are claimed in marker order.
	for i, msg := range msgs {
		assert.Equal(t, ids[i], msg.ID)
		assert.Equal(t, claim.ID, msg.ClaimID)
	}

	// A second claim gets the remainder; claims do not overlap.
	second, rest, err := f.db.Claims().Create(f.ctx, "p1", "orders", 300, 60, 10)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Len(t, rest, 2)
	assert.NotEqual(t, claim.ID, second.ID)
	assert.Equal(t, ids[3], rest[0].ID)
	assert.Equal(t, ids[4], rest[1].ID)

	got, gotMsgs, err := f.db.Claims().Get(f.ctx, "p1", "orders", claim.ID)
	require.NoError(t, err)
	assert.Equal(t, claim.ID, got.ID)
	assert.Len(t, gotMsgs, 3)

	_, _, err = f.db.Claims().Get(f.ctx, "p1", "orders", "nonexistent")
	assert.True(t, store.ErrClaimDoesNotExist.Has(err))
}

func testClaimExpiry(t *testing.T, f fixture) {
	f.post(t, "p1", "orders", 2)

	claim, msgs, err := f.db.Claims().Create(f.ctx, "p1", "orders", 300, 60, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	page := f.list(t, "p1", "orders", store.ListOptions{})
	assert.Empty(t, page.Messages)

	// Past the lease the claim is gone and the messages visible again.
	f.clk.Advance(301 * time.Second)

	_, _, err = f.db.Claims().Get(f.ctx, "p1", "orders", claim.ID)
	assert.True(t, store.ErrClaimDoesNotExist.Has(err))

	page = f.list(t, "p1", "orders", store.ListOptions{})
	assert.Len(t, page.Messages, 2)

	// The released messages can be claimed again.
	again, msgs, err := f.db.Claims().Create(f.ctx, "p1", "orders", 300, 60, 10)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Len(t, msgs, 2)
	assert.NotEqual(t, claim.ID, again.ID)
}

func testClaimUpdate(t *testing.T, f fixture) {
	f.post(t, "p1", "orders", 1)

	claim, _, err := f.db.Claims().Create(f.ctx, "p1", "orders", 300, 60, 10)
	require.NoError(t, err)

	// Renewing at the edge of the lease keeps it alive.
	f.clk.Advance(299 * time.Second)
	require.NoError(t, f.db.Claims().Update(f.ctx, "p1", "orders", claim.ID, 300))

	f.clk.Advance(299 * time.Second)
	got, _, err := f.db.Claims().Get(f.ctx, "p1", "orders", claim.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(299), got.Age(f.clk.Now()))

	// An expired claim cannot be renewed.
	f.clk.Advance(2 * time.Second)
	err = f.db.Claims().Update(f.ctx, "p1", "orders", claim.ID, 300)
	assert.True(t, store.ErrClaimDoesNotExist.Has(err))
}

func testClaimDelete(t *testing.T, f fixture) {
	f.post(t, "p1", "orders", 2)

	claim, _, err := f.db.Claims().Create(f.ctx, "p1", "orders", 300, 60, 10)
	require.NoError(t, err)

	require.NoError(t, f.db.Claims().Delete(f.ctx, "p1", "orders", claim.ID))

	// Releasing makes the messages immediately claimable.
	page := f.list(t, "p1", "orders", store.ListOptions{})
	assert.Len(t, page.Messages, 2)

	_, _, err = f.db.Claims().Get(f.ctx, "p1", "orders", claim.ID)
	assert.True(t, store.ErrClaimDoesNotExist.Has(err))

	// Deleting again, or deleting an unknown claim, succeeds.
	require.NoError(t, f.db.Claims().Delete(f.ctx, "p1", "orders", claim.ID))
	require.NoError(t, f.db.Claims().Delete(f.ctx, "p1", "orders", "nonexistent"))
}

func testClaimGrace(t *testing.T, f fixture) {
	msgs := []*store.Message{{Body: "fragile", TTL: 60}}
	ids, err := f.db.Messages().Post(f.ctx, "p1", "orders", f.client, msgs)
	require.NoError(t, err)

	_, claimed, err := f.db.Claims().Create(f.ctx, "p1", "orders", 300, 120, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// The grace keeps the message alive past its original ttl.
	f.clk.Advance(90 * time.Second)
	_, err = f.db.Messages().Get(f.ctx, "p1", "orders", ids[0])
	require.NoError(t, err)

	// But not past ttl+grace.
	f.clk.Advance(120 * time.Second)
	_, err = f.db.Messages().Get(f.ctx, "p1", "orders", ids[0])
	assert.True(t, store.ErrMessageDoesNotExist.Has(err))
}

func testClaimConditionalDelete(t *testing.T, f fixture) {
	ids := f.post(t, "p1", "orders", 1)

	claim, _, err := f.db.Claims().Create(f.ctx, "p1", "orders", 300, 60, 10)
	require.NoError(t, err)

	// A delete bound to the wrong claim silently does nothing.
	require.NoError(t, f.db.Messages().Delete(f.ctx, "p1", "orders", ids[0], "wrong-claim"))
	_, err = f.db.Messages().Get(f.ctx, "p1", "orders", ids[0])
	require.NoError(t, err)

	// Bound to the owning live claim the delete goes through.
	require.NoError(t, f.db.Messages().Delete(f.ctx, "p1", "orders", ids[0], claim.ID))
	_, err = f.db.Messages().Get(f.ctx, "p1", "orders", ids[0])
	assert.True(t, store.ErrMessageDoesNotExist.Has(err))

	// An expired claim no longer authorizes deletes.
	ids = f.post(t, "p1", "orders", 1)
	claim, _, err = f.db.Claims().Create(f.ctx, "p1", "orders", 300, 60, 10)
	require.NoError(t, err)

	f.clk.Advance(301 * time.Second)
	require.NoError(t, f.db.Messages().Delete(f.ctx, "p1", "orders", ids[0], claim.ID))
	_, err = f.db.Messages().Get(f.ctx, "p1", "orders", ids[0])
	require.NoError(t, err)
}

func testPools(t *testing.T, f fixture) {
	_, err := f.db.Pools().Get(f.ctx, "missing")
	assert.True(t, store.ErrPoolDoesNotExist.Has(err))

	require.NoError(t, f.db.Pools().Register(f.ctx, &store.Pool{
		ID: "pool-b", URI: "bolt:///tmp/b.db", Weight: 2, Group: "ssd",
	}))
	require.NoError(t, f.db.Pools().Register(f.ctx, &store.Pool{
		ID: "pool-a", URI: "bolt:///tmp/a.db", Weight: 1,
	}))

	pool, err := f.db.Pools().Get(f.ctx, "pool-b")
	require.NoError(t, err)
	assert.Equal(t, "bolt:///tmp/b.db", pool.URI)
	assert.Equal(t, 2, pool.Weight)
	assert.Equal(t, "ssd", pool.Group)

	// Registering again replaces the entry.
	require.NoError(t, f.db.Pools().Register(f.ctx, &store.Pool{
		ID: "pool-b", URI: "bolt:///tmp/b2.db", Weight: 5,
	}))
	pool, err = f.db.Pools().Get(f.ctx, "pool-b")
	require.NoError(t, err)
	assert.Equal(t, "bolt:///tmp/b2.db", pool.URI)

	pools, err := f.db.Pools().List(f.ctx)
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Equal(t, "pool-a", pools[0].ID)
	assert.Equal(t, "pool-b", pools[1].ID)

	require.NoError(t, f.db.Pools().Remove(f.ctx, "pool-a"))
	require.NoError(t, f.db.Pools().Remove(f.ctx, "pool-a"))

	pools, err = f.db.Pools().List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, pools, 1)
}

func testCatalogue(t *testing.T, f fixture) {
	_, ok, err := f.db.Catalogue().Get(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.db.Catalogue().Insert(f.ctx, "p1", "orders", "pool-a"))
	require.NoError(t, f.db.Catalogue().Insert(f.ctx, "p1", "billing", "pool-b"))
	require.NoError(t, f.db.Catalogue().Insert(f.ctx, "p2", "orders", "pool-b"))

	poolID, ok, err := f.db.Catalogue().Get(f.ctx, "p1", "orders")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pool-a", poolID)

	entries, err := f.db.Catalogue().List(f.ctx, "p1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "billing", entries[0].Queue)
	assert.Equal(t, "orders", entries[1].Queue)

	require.NoError(t, f.db.Catalogue().Delete(f.ctx, "p1", "orders"))
	_, ok, err = f.db.Catalogue().Get(f.ctx, "p1", "orders")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, f.db.Catalogue().Delete(f.ctx, "p1", "orders"))

	require.NoError(t, f.db.Catalogue().DropAll(f.ctx))
	_, ok, err = f.db.Catalogue().Get(f.ctx, "p2", "orders")
	require.NoError(t, err)
	assert.False(t, ok)
}
