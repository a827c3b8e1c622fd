// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package api

import (
	"context"
	"net/http"

	"github.com/courier-mq/courier/broker/codec"
	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/broker/validate"
)

func poolHref(id string) string {
	return APIVersion + "/pools/" + id
}

func (s *Server) handlePutPool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, false)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	doc, err := sc.codec.Decode(r.Body, s.limits.MaxMessageSize)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	obj, err := codec.AsObject(doc)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	uri, ok, err := docString(obj, "uri")
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	if !ok || uri == "" {
		s.respondError(w, sc.codec, validate.ErrInvalid.New("pool is missing its uri"))
		return
	}
	weight64, ok, err := docInt(obj, "weight")
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	if !ok {
		s.respondError(w, sc.codec, validate.ErrInvalid.New("pool is missing its weight"))
		return
	}
	if weight64 < 0 {
		s.respondError(w, sc.codec, validate.ErrInvalid.New("pool weight must not be negative"))
		return
	}
	group, _, err := docString(obj, "group")
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	id := muxVar(r, "pool")
	existed, err := s.poolExists(ctx, id)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	pool := &store.Pool{ID: id, URI: uri, Weight: int(weight64), Group: group}
	if err := s.db.Pools().Register(ctx, pool); err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	if existed {
		s.respond(w, sc.codec, http.StatusNoContent, nil)
		return
	}
	s.respond(w, sc.codec, http.StatusCreated, nil)
}

// poolExists distinguishes the 201 and 204 responses of a pool PUT.
func (s *Server) poolExists(ctx context.Context, id string) (bool, error) {
	_, err := s.db.Pools().Get(ctx, id)
	if err != nil {
		if store.ErrPoolDoesNotExist.Has(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, false)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	pool, err := s.db.Pools().Get(ctx, muxVar(r, "pool"))
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	s.respond(w, sc.codec, http.StatusOK, map[string]interface{}{
		"href":   poolHref(pool.ID),
		"uri":    pool.URI,
		"weight": pool.Weight,
		"group":  pool.Group,
	})
}

func (s *Server) handleDeletePool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, false)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	if err := s.db.Pools().Remove(ctx, muxVar(r, "pool")); err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	s.respond(w, sc.codec, http.StatusNoContent, nil)
}

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, false)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	pools, err := s.db.Pools().List(ctx)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	entries := make([]interface{}, 0, len(pools))
	for _, pool := range pools {
		entries = append(entries, map[string]interface{}{
			"href":   poolHref(pool.ID),
			"uri":    pool.URI,
			"weight": pool.Weight,
			"group":  pool.Group,
		})
	}
	s.respond(w, sc.codec, http.StatusOK, map[string]interface{}{
		"pools": entries,
	})
}
