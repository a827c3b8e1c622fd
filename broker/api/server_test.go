// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap/zaptest"

	"github.com/courier-mq/courier/broker/api"
	"github.com/courier-mq/courier/broker/store/boltstore"
	"github.com/courier-mq/courier/broker/validate"
	"github.com/courier-mq/courier/shared/clock"
)

type apiFixture struct {
	t       *testing.T
	handler http.Handler
	clk     *clock.Fake
	client  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	clk := clock.NewFake(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	log := zaptest.NewLogger(t)

	db, err := boltstore.Open(log.Named("store"),
		filepath.Join(t.TempDir(), "courier.db"),
		boltstore.Options{Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	server := api.NewServer(log.Named("api"), nil, db, validate.DefaultLimits(), clk)
	return &apiFixture{
		t:       t,
		handler: server.Handler,
		clk:     clk,
		client:  uuid.NewString(),
	}
}

// request sends a JSON request with the standard headers. Header overrides
// with an empty value drop the header entirely.
func (f *apiFixture) request(method, path string, body interface{}, overrides map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Project-ID", "p1")
	req.Header.Set("Client-ID", f.client)
	req.Header.Set("Content-Type", "application/json")
	for name, value := range overrides {
		if value == "" {
			req.Header.Del(name)
		} else {
			req.Header.Set(name, value)
		}
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) decode(rec *httptest.ResponseRecorder) map[string]interface{} {
	var doc map[string]interface{}
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

func (f *apiFixture) postMessages(queue string, bodies ...interface{}) []string {
	var batch []interface{}
	for _, body := range bodies {
		batch = append(batch, map[string]interface{}{"ttl": 3600, "body": body})
	}
	rec := f.request(http.MethodPost, "/v1.1/queues/"+queue+"/messages", batch, nil)
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())

	resources := f.decode(rec)["resources"].([]interface{})
	ids := make([]string, 0, len(resources))
	for _, res := range resources {
		href := res.(string)
		ids = append(ids, href[strings.LastIndex(href, "/")+1:])
	}
	return ids
}

func TestProduceAndConsume(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodPut, "/v1.1/queues/orders", nil, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(http.MethodPost, "/v1.1/queues/orders/messages", []interface{}{
		map[string]interface{}{"ttl": 300, "body": map[string]interface{}{"event": "created"}},
		map[string]interface{}{"ttl": 300, "body": map[string]interface{}{"event": "paid"}},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	location := rec.Header().Get("Location")
	assert.Contains(t, location, "/v1.1/queues/orders/messages?ids=")

	resources := f.decode(rec)["resources"].([]interface{})
	require.Len(t, resources, 2)
	for _, res := range resources {
		href := res.(string)
		assert.True(t, strings.HasPrefix(href, "/v1.1/queues/orders/messages/"), href)
		assert.NotContains(t, href, "/messages/messages/")
	}

	// The producer sees its own messages only with echo.
	rec = f.request(http.MethodGet, "/v1.1/queues/orders/messages", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.decode(rec)["messages"])

	rec = f.request(http.MethodGet, "/v1.1/queues/orders/messages?echo=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	messages := f.decode(rec)["messages"].([]interface{})
	require.Len(t, messages, 2)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"event": "created"}, first["body"])
	assert.Equal(t, float64(300), first["ttl"])
	assert.Equal(t, float64(0), first["age"])

	// Claim, then delete under the claim.
	rec = f.request(http.MethodPost, "/v1.1/queues/orders/claims",
		map[string]interface{}{"ttl": 300, "grace": 60}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	claimLocation := rec.Header().Get("Location")
	require.Contains(t, claimLocation, "/v1.1/queues/orders/claims/")
	claimID := claimLocation[strings.LastIndex(claimLocation, "/")+1:]

	claimed := f.decode(rec)["messages"].([]interface{})
	require.Len(t, claimed, 2)
	href := claimed[0].(map[string]interface{})["href"].(string)
	assert.Contains(t, href, "?claim_id="+claimID)

	msgID := claimed[0].(map[string]interface{})["id"].(string)
	rec = f.request(http.MethodDelete,
		"/v1.1/queues/orders/messages/"+msgID+"?claim_id="+claimID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.request(http.MethodGet, "/v1.1/queues/orders/messages/"+msgID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkDelete(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.postMessages("orders", "a", "b", "c")

	rec := f.request(http.MethodDelete,
		"/v1.1/queues/orders/messages?ids="+strings.Join(ids, ","), nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for _, id := range ids {
		rec = f.request(http.MethodGet, "/v1.1/queues/orders/messages/"+id, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
}

func TestBulkGet(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.postMessages("orders", "a", "b", "c")

	rec := f.request(http.MethodGet,
		"/v1.1/queues/orders/messages?ids="+ids[0]+","+ids[2], nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var docs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0]["body"])
	assert.Equal(t, "c", docs[1]["body"])
}

func TestClaimExpiry(t *testing.T) {
	f := newAPIFixture(t)
	f.postMessages("orders", "job")

	rec := f.request(http.MethodPost, "/v1.1/queues/orders/claims",
		map[string]interface{}{"ttl": 60, "grace": 60}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	location := rec.Header().Get("Location")
	claimID := location[strings.LastIndex(location, "/")+1:]

	// While claimed, the message is hidden.
	rec = f.request(http.MethodGet, "/v1.1/queues/orders/messages?echo=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.decode(rec)["messages"])

	f.clk.Advance(61 * time.Second)

	rec = f.request(http.MethodGet, "/v1.1/queues/orders/claims/"+claimID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.request(http.MethodGet, "/v1.1/queues/orders/messages?echo=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.decode(rec)["messages"].([]interface{}), 1)
}

func TestClaimRenewAndRelease(t *testing.T) {
	f := newAPIFixture(t)
	f.postMessages("orders", "job")

	rec := f.request(http.MethodPost, "/v1.1/queues/orders/claims",
		map[string]interface{}{"ttl": 60, "grace": 60}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	location := rec.Header().Get("Location")
	claimID := location[strings.LastIndex(location, "/")+1:]

	f.clk.Advance(50 * time.Second)
	rec = f.request(http.MethodPatch, "/v1.1/queues/orders/claims/"+claimID,
		map[string]interface{}{"ttl": 120}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	f.clk.Advance(100 * time.Second)
	rec = f.request(http.MethodGet, "/v1.1/queues/orders/claims/"+claimID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := f.decode(rec)
	assert.Equal(t, float64(120), doc["ttl"])
	assert.Equal(t, float64(100), doc["age"])

	rec = f.request(http.MethodDelete, "/v1.1/queues/orders/claims/"+claimID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.request(http.MethodGet, "/v1.1/queues/orders/messages?echo=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.decode(rec)["messages"].([]interface{}), 1)
}

func TestClaimEmptyQueue(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodPut, "/v1.1/queues/orders", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(http.MethodPost, "/v1.1/queues/orders/claims",
		map[string]interface{}{"ttl": 60, "grace": 60}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListMissingQueue(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodGet, "/v1.1/queues/ghost/messages?echo=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.decode(rec)["messages"])
}

func TestPop(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.postMessages("orders", "a", "b", "c")

	rec := f.request(http.MethodDelete, "/v1.1/queues/orders/messages?pop=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	popped := f.decode(rec)["messages"].([]interface{})
	require.Len(t, popped, 2)
	assert.Equal(t, "a", popped[0].(map[string]interface{})["body"])
	assert.Equal(t, "b", popped[1].(map[string]interface{})["body"])

	rec = f.request(http.MethodGet, "/v1.1/queues/orders/messages?echo=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	remaining := f.decode(rec)["messages"].([]interface{})
	require.Len(t, remaining, 1)
	assert.Contains(t, remaining[0].(map[string]interface{})["href"], ids[2])
}

func TestDeleteCollectionParameters(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.postMessages("orders", "a")

	// Neither ids nor pop.
	rec := f.request(http.MethodDelete, "/v1.1/queues/orders/messages", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Both at once.
	rec = f.request(http.MethodDelete, "/v1.1/queues/orders/messages?ids="+ids[0]+"&pop=1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidationFailures(t *testing.T) {
	f := newAPIFixture(t)

	// Message ttl out of bounds.
	for _, ttl := range []int{-1, 59, 1209601} {
		rec := f.request(http.MethodPost, "/v1.1/queues/orders/messages", []interface{}{
			map[string]interface{}{"ttl": ttl, "body": "x"},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "ttl %d", ttl)
	}

	// Non-UUID Client-ID on post and on list.
	headers := map[string]string{"Client-ID": "not-a-uuid"}
	rec := f.request(http.MethodPost, "/v1.1/queues/orders/messages", []interface{}{
		map[string]interface{}{"ttl": 300, "body": "x"},
	}, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.request(http.MethodGet, "/v1.1/queues/orders/messages", nil, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing project header.
	rec = f.request(http.MethodGet, "/v1.1/queues/orders/messages", nil,
		map[string]string{"X-Project-ID": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Queue name too long.
	long := strings.Repeat("q", validate.MaxQueueNameLength+1)
	rec = f.request(http.MethodPut, "/v1.1/queues/"+long, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Claim ttl out of bounds.
	f.postMessages("orders", "x")
	rec = f.request(http.MethodPost, "/v1.1/queues/orders/claims",
		map[string]interface{}{"ttl": 59, "grace": 60}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Oversized listing limit.
	rec = f.request(http.MethodGet, "/v1.1/queues/orders/messages?limit=21", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Too many messages in one post.
	var batch []interface{}
	for i := 0; i < 21; i++ {
		batch = append(batch, map[string]interface{}{"ttl": 300, "body": i})
	}
	rec = f.request(http.MethodPost, "/v1.1/queues/orders/messages", batch, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Non-array post document.
	rec = f.request(http.MethodPost, "/v1.1/queues/orders/messages",
		map[string]interface{}{"ttl": 300, "body": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageExpiryOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodPost, "/v1.1/queues/orders/messages", []interface{}{
		map[string]interface{}{"ttl": 60, "body": "short-lived"},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	resources := f.decode(rec)["resources"].([]interface{})
	href := resources[0].(string)

	f.clk.Advance(61 * time.Second)
	rec = f.request(http.MethodGet, href, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodPut, "/v1.1/queues/orders",
		map[string]interface{}{"team": "payments"}, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Re-PUT replaces metadata and reports no content.
	rec = f.request(http.MethodPut, "/v1.1/queues/orders",
		map[string]interface{}{"team": "billing"}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.request(http.MethodGet, "/v1.1/queues/orders", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"team": "billing"}, f.decode(rec))

	rec = f.request(http.MethodGet, "/v1.1/queues", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queues := f.decode(rec)["queues"].([]interface{})
	require.Len(t, queues, 1)
	assert.Equal(t, "orders", queues[0].(map[string]interface{})["name"])
	assert.Equal(t, "/v1.1/queues/orders", queues[0].(map[string]interface{})["href"])

	rec = f.request(http.MethodDelete, "/v1.1/queues/orders", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.request(http.MethodGet, "/v1.1/queues/orders", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Deleting again still succeeds.
	rec = f.request(http.MethodDelete, "/v1.1/queues/orders", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestQueueStatsOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodGet, "/v1.1/queues/ghost/stats", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.postMessages("orders", "a", "b", "c")

	rec = f.request(http.MethodPost, "/v1.1/queues/orders/claims?limit=1",
		map[string]interface{}{"ttl": 300, "grace": 60}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(http.MethodGet, "/v1.1/queues/orders/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := f.decode(rec)["messages"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["free"])
	assert.Equal(t, float64(1), stats["claimed"])
	assert.Equal(t, float64(3), stats["total"])
	assert.Contains(t, stats, "oldest")
	assert.Contains(t, stats, "newest")
}

func TestListPaging(t *testing.T) {
	f := newAPIFixture(t)
	f.postMessages("orders", "a", "b", "c", "d", "e")

	rec := f.request(http.MethodGet, "/v1.1/queues/orders/messages?echo=true&limit=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := f.decode(rec)
	require.Len(t, doc["messages"].([]interface{}), 2)

	links := doc["links"].([]interface{})
	require.Len(t, links, 1)
	next := links[0].(map[string]interface{})["href"].(string)
	require.Contains(t, next, "marker=")

	rec = f.request(http.MethodGet, next+"&echo=true&limit=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page2 := f.decode(rec)["messages"].([]interface{})
	require.Len(t, page2, 2)
	assert.Equal(t, "c", page2[0].(map[string]interface{})["body"])
}

func TestPoolsOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodPut, "/v1.1/pools/pool-a",
		map[string]interface{}{"uri": "bolt:///tmp/a.db", "weight": 3, "group": "ssd"}, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(http.MethodPut, "/v1.1/pools/pool-a",
		map[string]interface{}{"uri": "bolt:///tmp/a2.db", "weight": 5}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.request(http.MethodGet, "/v1.1/pools/pool-a", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := f.decode(rec)
	assert.Equal(t, "bolt:///tmp/a2.db", doc["uri"])
	assert.Equal(t, float64(5), doc["weight"])

	rec = f.request(http.MethodGet, "/v1.1/pools", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.decode(rec)["pools"].([]interface{}), 1)

	// Missing uri or weight is rejected.
	rec = f.request(http.MethodPut, "/v1.1/pools/pool-b",
		map[string]interface{}{"weight": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.request(http.MethodPut, "/v1.1/pools/pool-b",
		map[string]interface{}{"uri": "bolt:///tmp/b.db"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.request(http.MethodDelete, "/v1.1/pools/pool-a", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.request(http.MethodGet, "/v1.1/pools/pool-a", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodGet, "/v1.1/health", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMsgpackRequests(t *testing.T) {
	f := newAPIFixture(t)

	batch := []interface{}{
		map[string]interface{}{"ttl": 300, "body": []byte{0x01, 0x02, 0xff}},
	}
	data, err := msgpack.Marshal(batch)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1.1/queues/orders/messages", bytes.NewReader(data))
	req.Header.Set("X-Project-ID", "p1")
	req.Header.Set("Client-ID", f.client)
	req.Header.Set("Content-Type", "application/x-msgpack")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The response mirrors the request encoding.
	assert.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))

	var posted map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &posted))
	resources := posted["resources"].([]interface{})
	require.Len(t, resources, 1)
	href := resources[0].(string)

	// Fetch it back over msgpack and check the binary body survived.
	req = httptest.NewRequest(http.MethodGet, href, nil)
	req.Header.Set("X-Project-ID", "p1")
	req.Header.Set("Client-ID", f.client)
	req.Header.Set("Content-Type", "application/x-msgpack")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var msg map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, []byte{0x01, 0x02, 0xff}, msg["body"])
}

func TestCrossProjectIsolation(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.postMessages("orders", "secret")

	rec := f.request(http.MethodGet, "/v1.1/queues/orders/messages/"+ids[0], nil,
		map[string]string{"X-Project-ID": "p2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.request(http.MethodGet, "/v1.1/queues/orders", nil,
		map[string]string{"X-Project-ID": "p2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
