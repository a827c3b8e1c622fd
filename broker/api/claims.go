// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package api

import (
	"net/http"

	"github.com/courier-mq/courier/broker/codec"
)

func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, true)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	limit, err := s.queryLimit(r, defaultClaimLimit)
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

	ttl64, ok, err := docInt(obj, "ttl")
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	if !ok {
		s.respondError(w, sc.codec, codec.ErrBadDocument.New("claim is missing its ttl"))
		return
	}
	grace64, ok, err := docInt(obj, "grace")
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	if !ok {
		s.respondError(w, sc.codec, codec.ErrBadDocument.New("claim is missing its grace"))
		return
	}

	ttl, grace := int(ttl64), int(grace64)
	if err := s.limits.ClaimTTL(ttl); err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	if err := s.limits.ClaimGrace(grace); err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	claim, msgs, err := s.db.Claims().Create(ctx, sc.project, sc.queue, ttl, grace, limit)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	if claim == nil {
		s.respond(w, sc.codec, http.StatusNoContent, nil)
		return
	}

	w.Header().Set("Location", claimHref(sc.queue, claim.ID))
	s.respond(w, sc.codec, http.StatusCreated, map[string]interface{}{
		"messages": s.messageResources(sc.queue, msgs, claim.ID),
	})
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, true)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	claim, msgs, err := s.db.Claims().Get(ctx, sc.project, sc.queue, muxVar(r, "id"))
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	s.respond(w, sc.codec, http.StatusOK, map[string]interface{}{
		"href":     claimHref(sc.queue, claim.ID),
		"ttl":      claim.TTL,
		"age":      claim.Age(s.clock.Now()),
		"messages": s.messageResources(sc.queue, msgs, claim.ID),
	})
}

func (s *Server) handleUpdateClaim(w http.ResponseWriter, r *http.Request) {
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
	obj, err := codec.AsObject(doc)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	ttl64, ok, err := docInt(obj, "ttl")
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	if !ok {
		s.respondError(w, sc.codec, codec.ErrBadDocument.New("claim update is missing its ttl"))
		return
	}
	ttl := int(ttl64)
	if err := s.limits.ClaimTTL(ttl); err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	if err := s.db.Claims().Update(ctx, sc.project, sc.queue, muxVar(r, "id"), ttl); err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	s.respond(w, sc.codec, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer mon.Task()(&ctx)(nil)

	sc, err := s.begin(r, true)
	if err != nil {
		s.respondError(w, sc.codec, err)
		return
	}

	if err := s.db.Claims().Delete(ctx, sc.project, sc.queue, muxVar(r, "id")); err != nil {
		s.respondError(w, sc.codec, err)
		return
	}
	s.respond(w, sc.codec, http.StatusNoContent, nil)
}
