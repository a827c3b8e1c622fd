// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package api

import (
	"net/http"

	"github.com/courier-mq/courier/broker/codec"
)

func (s *Server) handlePutQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, false)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	var metadata map[string]interface{}
	if r.ContentLength != 0 {
		doc, err := sc.codec.Decode(r.Body, s.limits.MaxMessageSize)
		if err != nil {
			s.respondError(w, sc.codec, err)
			return
		}
		metadata, err = codec.AsObject(doc)
		if err != nil {
			s.respondError(w, sc.codec, err)
			return
		}
	}

	created, err := s.db.Queues().Create(ctx, sc.project, sc.queue, metadata)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	if created {
		s.respond(w, sc.codec, http.StatusCreated, nil)
		return
	}
	s.respond(w, sc.codec, http.StatusNoContent, nil)
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, false)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	queue, err := s.db.Queues().Get(ctx, sc.project, sc.queue)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	metadata := queue.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	s.respond(w, sc.codec, http.StatusOK, metadata)
}

func (s *Server) handleDeleteQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, false)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	if err := s.db.Queues().Delete(ctx, sc.project, sc.queue); err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	s.respond(w, sc.codec, http.StatusNoContent, nil)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, false)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	stats, err := s.db.Queues().Stats(ctx, sc.project, sc.queue)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	messages := map[string]interface{}{
		"free":    stats.Free,
		"claimed": stats.Claimed,
		"total":   stats.Total,
	}
	if stats.Oldest != nil {
		messages["oldest"] = map[string]interface{}{
			"href":    messageHref(sc.queue, stats.Oldest.ID),
			"age":     stats.Oldest.Age,
			"created": stats.Oldest.CreatedAt.UTC().Format(timeFormat),
		}
	}
	if stats.Newest != nil {
		messages["newest"] = map[string]interface{}{
			"href":    messageHref(sc.queue, stats.Newest.ID),
			"age":     stats.Newest.Age,
			"created": stats.Newest.CreatedAt.UTC().Format(timeFormat),
		}
	}
	s.respond(w, sc.codec, http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}

func (s *Server) handleListQueues(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, false)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	limit, err := s.queryLimit(r, defaultListLimit)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	marker := r.URL.Query().Get("marker")
	detailed := queryBool(r, "detailed")

	page, err := s.db.Queues().List(ctx, sc.project, marker, limit)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	queues := make([]interface{}, 0, len(page.Queues))
	for _, q := range page.Queues {
		entry := map[string]interface{}{
			"name": q.Name,
			"href": queueHref(q.Name),
		}
		if detailed {
			metadata := q.Metadata
			if metadata == nil {
				metadata = map[string]interface{}{}
			}
			entry["metadata"] = metadata
		}
		queues = append(queues, entry)
	}

	body := map[string]interface{}{
		"queues": queues,
	}
	if page.NextMarker != "" {
		body["links"] = []interface{}{
			map[string]interface{}{
				"rel":  "next",
				"href": APIVersion + "/queues?marker=" + page.NextMarker,
			},
		}
	}
	s.respond(w, sc.codec, http.StatusOK, body)
}
