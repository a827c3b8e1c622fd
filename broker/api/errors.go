// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/courier-mq/courier/broker/codec"
	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/broker/validate"
)

// statusOf maps error kinds to HTTP status codes. Anything unrecognized,
// including invariant violations, is a 500.
func statusOf(err error) int {
	switch {
	case validate.ErrInvalid.Has(err),
		codec.ErrBadDocument.Has(err),
		codec.ErrTooLarge.Has(err):
		return http.StatusBadRequest

	case store.ErrQueueDoesNotExist.Has(err),
		store.ErrMessageDoesNotExist.Has(err),
		store.ErrClaimDoesNotExist.Has(err),
		store.ErrPoolDoesNotExist.Has(err),
		store.ErrQueueIsEmpty.Has(err):
		return http.StatusNotFound

	case store.ErrMessageConflict.Has(err),
		store.ErrConnection.Has(err):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Server-side failures are
// logged; client errors are the caller's problem.
func (s *Server) respondError(w http.ResponseWriter, c codec.Codec, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.respond(w, c, status, map[string]interface{}{
		"error": err.Error(),
	})
}
