// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/courier-mq/courier/broker/codec"
	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/broker/validate"
)

func (s *Server) handlePostMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, true)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	doc, err := sc.codec.Decode(r.Body, s.limits.MaxMessageSize)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	arr, err := codec.AsArray(doc)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	if err := s.limits.PostBatch(len(arr)); err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	msgs := make([]*store.Message, 0, len(arr))
	for _, entry := range arr {
		obj, err := codec.AsObject(entry)
		if err != nil {
			s.respondError(w, sc.codec, err)
			return
		}
		body, ok := obj["body"]
		if !ok {
			s.respondError(w, sc.codec, codec.ErrBadDocument.New("message is missing its body"))
			return
		}

		ttl64, ok, err := docInt(obj, "ttl")
		if err != nil {
			s.respondError(w, sc.codec, err)
			return
		}
		ttl := defaultMessageTTL
		if ok {
			ttl = int(ttl64)
		}
		if err := s.limits.MessageTTL(ttl); err != nil {
			s.respondError(w, sc.codec, err)
			return
		}

		msgs = append(msgs, &store.Message{Body: body, TTL: ttl})
	}

	ids, err := s.db.Messages().Post(ctx, sc.project, sc.queue, sc.clientID, msgs)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	resources := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		resources = append(resources, messageHref(sc.queue, id))
	}
	w.Header().Set("Location",
		queueHref(sc.queue)+"/messages?ids="+url.QueryEscape(strings.Join(ids, ",")))
	s.respond(w, sc.codec, http.StatusCreated, map[string]interface{}{
		"resources": resources,
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, true)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	if rawIDs := r.URL.Query().Get("ids"); rawIDs != "" {
		s.bulkGetMessages(w, r, sc, rawIDs)
		return
	}

	limit, err := s.queryLimit(r, defaultListLimit)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	opts := store.ListOptions{
		Limit:          limit,
		Marker:         r.URL.Query().Get("marker"),
		Echo:           queryBool(r, "echo"),
		IncludeClaimed: queryBool(r, "include_claimed"),
	}

	page, err := s.db.Messages().List(ctx, sc.project, sc.queue, sc.clientID, opts)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	body := map[string]interface{}{
		"messages": s.messageResources(sc.queue, page.Messages, ""),
	}
	if page.NextMarker != "" {
		body["links"] = []interface{}{
			map[string]interface{}{
				"rel":  "next",
				"href": queueHref(sc.queue) + "/messages?marker=" + page.NextMarker,
			},
		}
	}
	s.respond(w, sc.codec, http.StatusOK, body)
}

func (s *Server) bulkGetMessages(w http.ResponseWriter, r *http.Request, sc *requestScope, rawIDs string) {
	ctx := r.Context()

	ids := strings.Split(rawIDs, ",")
	if err := s.limits.BulkIDs(len(ids)); err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	msgs, err := s.db.Messages().BulkGet(ctx, sc.project, sc.queue, ids)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	s.respond(w, sc.codec, http.StatusOK, s.messageResources(sc.queue, msgs, ""))
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, true)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	msg, err := s.db.Messages().Get(ctx, sc.project, sc.queue, muxVar(r, "id"))
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	s.respond(w, sc.codec, http.StatusOK, s.messageResource(sc.queue, msg, ""))
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, true)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	claimID := r.URL.Query().Get("claim_id")
	if err := s.db.Messages().Delete(ctx, sc.project, sc.queue, muxVar(r, "id"), claimID); err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	s.respond(w, sc.codec, http.StatusNoContent, nil)
}

// handleDeleteMessages handles both bulk delete by ids and pop. Exactly one
// of the two parameters must be present.
func (s *Server) handleDeleteMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, true)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	rawIDs := r.URL.Query().Get("ids")
	rawPop := r.URL.Query().Get("pop")
	switch {
	case rawIDs != "" && rawPop != "":
		s.respondError(w, sc.codec, validate.ErrInvalid.New("ids and pop are mutually exclusive"))
	case rawIDs != "":
		ids := strings.Split(rawIDs, ",")
		if err := s.limits.BulkIDs(len(ids)); err != nil {
			s.respondError(w, sc.codec, err)
			return
		}
		if err := s.db.Messages().BulkDelete(ctx, sc.project, sc.queue, ids); err != nil {
			s.respondError(w, sc.codec, err)
			return
		}
		s.respond(w, sc.codec, http.StatusNoContent, nil)
	case rawPop != "":
		limit, err := strconv.Atoi(rawPop)
		if err != nil {
			s.respondError(w, sc.codec, validate.ErrInvalid.New("pop must be an integer: %v", err))
			return
		}
		if err := s.limits.ListLimit(limit); err != nil {
			s.respondError(w, sc.codec, err)
			return
		}
		msgs, err := s.db.Messages().Pop(ctx, sc.project, sc.queue, limit)
		if err != nil {
			s.respondError(w, sc.codec, err)
			return
		}
		s.respond(w, sc.codec, http.StatusOK, map[string]interface{}{
			"messages": s.messageResources(sc.queue, msgs, ""),
		})
	default:
		s.respondError(w, sc.codec, validate.ErrInvalid.New("either ids or pop is required"))
	}
}
