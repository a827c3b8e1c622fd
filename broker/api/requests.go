// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/courier-mq/courier/broker/codec"
	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/broker/validate"
)

// timeFormat renders timestamps in responses.
const timeFormat = time.RFC3339

// requestScope carries the validated per-request identity. The codec is
// always set, even when validation fails, so errors can be encoded.
type requestScope struct {
	project  string
	clientID uuid.UUID
	queue    string
	codec    codec.Codec
}

// begin validates the common headers and, when the route carries one, the
// queue name. Message and claim routes additionally require a Client-ID.
func (s *Server) begin(r *http.Request, needClient bool) (*requestScope, error) {
	sc := &requestScope{
		codec: s.codecs.Lookup(r.Header.Get("Content-Type")),
	}

	sc.project = r.Header.Get("X-Project-ID")
	if err := s.limits.Project(sc.project); err != nil {
		return sc, err
	}

	if needClient {
		clientID, err := s.limits.ClientID(r.Header.Get("Client-ID"))
		if err != nil {
			return sc, err
		}
		sc.clientID = clientID
	}

	if queue, ok := mux.Vars(r)["queue"]; ok {
		if err := s.limits.QueueName(queue); err != nil {
			return sc, err
		}
		sc.queue = queue
	}

	return sc, nil
}

// respond encodes v with the request's codec. A nil v writes only the
// status.
func (s *Server) respond(w http.ResponseWriter, c codec.Codec, status int, v interface{}) {
	if v == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	if err := c.Encode(w, v); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

// queryLimit parses the limit query parameter, falling back to def.
func (s *Server) queryLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validate.ErrInvalid.New("limit must be an integer: %v", err)
	}
	if err := s.limits.ListLimit(limit); err != nil {
		return 0, err
	}
	return limit, nil
}

func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// docInt extracts an integer field from a decoded document. Both codecs
// deliver numbers as int64, uint64, or float64.
func docInt(obj map[string]interface{}, key string) (int64, bool, error) {
	raw, ok := obj[key]
	if !ok {
		return 0, false, nil
	}
	switch n := raw.(type) {
	case int64:
		return n, true, nil
	case uint64:
		if n > 1<<62 {
			return 0, false, codec.ErrBadDocument.New("field %q out of range", key)
		}
		return int64(n), true, nil
	case int8:
		return int64(n), true, nil
	case int16:
		return int64(n), true, nil
	case int32:
		return int64(n), true, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, false, codec.ErrBadDocument.New("field %q must be an integer", key)
		}
		return int64(n), true, nil
	default:
		return 0, false, codec.ErrBadDocument.New("field %q must be an integer", key)
	}
}

// docString extracts a string field from a decoded document.
func docString(obj map[string]interface{}, key string) (string, bool, error) {
	raw, ok := obj[key]
	if !ok {
		return "", false, nil
	}
	str, ok := raw.(string)
	if !ok {
		return "", false, codec.ErrBadDocument.New("field %q must be a string", key)
	}
	return str, true, nil
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func queueHref(queue string) string {
	return APIVersion + "/queues/" + queue
}

func messageHref(queue, id string) string {
	return queueHref(queue) + "/messages/" + id
}

func claimHref(queue, id string) string {
	return queueHref(queue) + "/claims/" + id
}

// messageResource renders one message. A non-empty claimID is appended to
// the href so consumers can hand it back on delete.
func (s *Server) messageResource(queue string, m *store.Message, claimID string) map[string]interface{} {
	href := messageHref(queue, m.ID)
	if claimID != "" {
		href += "?claim_id=" + claimID
	}
	return map[string]interface{}{
		"id":   m.ID,
		"href": href,
		"ttl":  m.TTL,
		"age":  m.Age(s.clock.Now()),
		"body": m.Body,
	}
}

func (s *Server) messageResources(queue string, msgs []*store.Message, claimID string) []interface{} {
	out := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, s.messageResource(queue, m, claimID))
	}
	return out
}
