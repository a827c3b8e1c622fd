// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package sqlstore

import (
	"bytes"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/courier-mq/courier/broker/store"
)

// newMessageID returns an opaque random id.
func newMessageID() string {
	var raw [12]byte
	_, _ = rand.Read(raw[:])
	return hex.EncodeToString(raw[:])
}

// encodeBody serializes an arbitrary document for storage. msgpack keeps
// binary payloads intact, which JSON storage would not.
func encodeBody(body interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(body)
	return data, Error.Wrap(err)
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

func encodeMetadata(metadata map[string]interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(metadata)
	return data, Error.Wrap(err)
}

func decodeMetadata(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var meta map[string]interface{}
	if err := dec.Decode(&meta); err != nil {
		return nil, Error.Wrap(err)
	}
	return meta, nil
}

func timeFromNanos(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

// messageColumns is the select list scanMessage expects.
const messageColumns = `id, body, ttl, created_at, marker, client_id, claim_id, claim_expires_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner, project, queue string) (*store.Message, error) {
	var (
		body          []byte
		createdAt     int64
		clientID      string
		claimExpires  int64
		msg           = &store.Message{Project: project, Queue: queue}
	)
	err := row.Scan(&msg.ID, &body, &msg.TTL, &createdAt, &msg.Marker, &clientID, &msg.ClaimID, &claimExpires)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrMessageDoesNotExist.New("not found")
		}
		return nil, Error.Wrap(err)
	}

	msg.Body, err = decodeBody(body)
	if err != nil {
		return nil, err
	}
	msg.ClientID, err = uuid.Parse(clientID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	msg.CreatedAt = timeFromNanos(createdAt)
	if claimExpires != 0 {
		msg.ClaimExpiresAt = timeFromNanos(claimExpires)
	}
	return msg, nil
}

// visibleCond filters unexpired, unclaimed rows. It expects two bind
// parameters, both the current time in unix nanoseconds.
const visibleCond = `created_at + ttl*1000000000 > ? AND (claim_id = '' OR claim_expires_at <= ?)`

// unexpiredCond filters rows whose TTL has not elapsed. One bind parameter.
const unexpiredCond = `created_at + ttl*1000000000 > ?`
