// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package boltstore

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/courier-mq/courier/broker/store"
)

// scopeKey addresses a (project, queue) pair. Queue names cannot contain
// NUL, so the separator is unambiguous.
func scopeKey(project, queue string) []byte {
	return []byte(project + "\x00" + queue)
}

// markerKey is the big-endian form of a marker, which makes bucket order
// equal marker order.
func markerKey(marker uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], marker)
	return key[:]
}

// newMessageID builds an opaque id carrying the marker plus random bytes.
// The marker prefix lets Get seek directly instead of scanning the queue.
func newMessageID(marker uint64) string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return hex.EncodeToString(markerKey(marker)) + hex.EncodeToString(suffix[:])
}

// parseMessageID recovers the marker from an id. Malformed ids are simply
// unknown messages.
func parseMessageID(id string) (marker uint64, ok bool) {
	if len(id) != 24 {
		return 0, false
	}
	raw, err := hex.DecodeString(id[:16])
	if err != nil {
		return 0, false
	}
	return binary.BigEndian.Uint64(raw), true
}

type queueRecord struct {
	Metadata  []byte `msgpack:"m"`
	CreatedAt int64  `msgpack:"t"`
}

type counterRecord struct {
	Value        int64 `msgpack:"v"`
	LastModified int64 `msgpack:"t"`
}

type messageRecord struct {
	ID             string `msgpack:"i"`
	Body           []byte `msgpack:"b"`
	TTL            int    `msgpack:"l"`
	CreatedAt      int64  `msgpack:"t"`
	Marker         uint64 `msgpack:"k"`
	ClientID       string `msgpack:"u"`
	ClaimID        string `msgpack:"c"`
	ClaimExpiresAt int64  `msgpack:"e"`
}

type claimRecord struct {
	TTL       int   `msgpack:"l"`
	Grace     int   `msgpack:"g"`
	CreatedAt int64 `msgpack:"t"`
}

type poolRecord struct {
	URI    string `msgpack:"u"`
	Weight int    `msgpack:"w"`
	Group  string `msgpack:"g"`
}

func encode(v interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	return data, Error.Wrap(err)
}

func decode(data []byte, v interface{}) error {
	return Error.Wrap(msgpack.Unmarshal(data, v))
}

// encodeBody serializes an arbitrary document for storage. msgpack keeps
// binary payloads intact, which JSON storage would not.
func encodeBody(body interface{}) ([]byte, error) {
	return encode(body)
}

func decodeBody(data []byte) (interface{}, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var body interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, Error.Wrap(err)
	}
	return body, nil
}

func timeFromNanos(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

func (r *messageRecord) toMessage(project, queue string) (*store.Message, error) {
	body, err := decodeBody(r.Body)
	if err != nil {
		return nil, err
	}

	clientID, err := uuid.Parse(r.ClientID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	msg := &store.Message{
		ID:        r.ID,
		Project:   project,
		Queue:     queue,
		Body:      body,
		TTL:       r.TTL,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		Marker:    r.Marker,
		ClientID:  clientID,
		ClaimID:   r.ClaimID,
	}
	if r.ClaimExpiresAt != 0 {
		msg.ClaimExpiresAt = time.Unix(0, r.ClaimExpiresAt).UTC()
	}
	return msg, nil
}

func fromMessage(m *store.Message) (*messageRecord, error) {
	body, err := encodeBody(m.Body)
	if err != nil {
		return nil, err
	}

	rec := &messageRecord{
		ID:        m.ID,
		Body:      body,
		TTL:       m.TTL,
		CreatedAt: m.CreatedAt.UnixNano(),
		Marker:    m.Marker,
		ClientID:  m.ClientID.String(),
		ClaimID:   m.ClaimID,
	}
	if !m.ClaimExpiresAt.IsZero() {
		rec.ClaimExpiresAt = m.ClaimExpiresAt.UnixNano()
	}
	return rec, nil
}
