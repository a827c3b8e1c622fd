// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Package api implements the broker's v1.1 HTTP surface.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/courier-mq/courier/broker/codec"
	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/broker/validate"
	"github.com/courier-mq/courier/shared/clock"
)

var (
	mon = monkit.Package()

	// Error is the default api error class.
	Error = errs.Class("api")
)

// APIVersion prefixes every route.
const APIVersion = "/v1.1"

// Default page sizes when the request does not specify a limit.
const (
	defaultListLimit  = 10
	defaultClaimLimit = 10
)

// defaultMessageTTL applies when a posted message omits its ttl.
const defaultMessageTTL = 3600

// Config configures the HTTP server.
type Config struct {
	Address string          `json:"address" yaml:"address"`
	Limits  validate.Limits `json:"limits" yaml:"limits"`
}

// Server serves the broker HTTP API.
type Server struct {
	log      *zap.Logger
	db       store.DB
	listener net.Listener
	server   http.Server

	limits validate.Limits
	codecs *codec.Registry
	clock  clock.Clock

	// Handler is exported for tests driving the mux directly.
	Handler http.Handler
}

// NewServer wires the routes. The listener may be nil when the server is
// only used through Handler.
func NewServer(log *zap.Logger, listener net.Listener, db store.DB, limits validate.Limits, clk clock.Clock) *Server {
	if clk == nil {
		clk = clock.System{}
	}

	s := &Server{
		log:      log,
		db:       db,
		listener: listener,
		limits:   limits,
		codecs:   codec.NewRegistry(),
		clock:    clk,
	}

	router := mux.NewRouter()
	v1 := router.PathPrefix(APIVersion).Subrouter()

	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1.HandleFunc("/queues", s.handleListQueues).Methods(http.MethodGet)
	v1.HandleFunc("/queues/{queue}", s.handlePutQueue).Methods(http.MethodPut)
	v1.HandleFunc("/queues/{queue}", s.handleGetQueue).Methods(http.MethodGet)
	v1.HandleFunc("/queues/{queue}", s.handleDeleteQueue).Methods(http.MethodDelete)
	v1.HandleFunc("/queues/{queue}/stats", s.handleQueueStats).Methods(http.MethodGet)

	v1.HandleFunc("/queues/{queue}/messages", s.handlePostMessages).Methods(http.MethodPost)
	v1.HandleFunc("/queues/{queue}/messages", s.handleListMessages).Methods(http.MethodGet)
	v1.HandleFunc("/queues/{queue}/messages", s.handleDeleteMessages).Methods(http.MethodDelete)
	v1.HandleFunc("/queues/{queue}/messages/{id}", s.handleGetMessage).Methods(http.MethodGet)
	v1.HandleFunc("/queues/{queue}/messages/{id}", s.handleDeleteMessage).Methods(http.MethodDelete)

	v1.HandleFunc("/queues/{queue}/claims", s.handleCreateClaim).Methods(http.MethodPost)
	v1.HandleFunc("/queues/{queue}/claims/{id}", s.handleGetClaim).Methods(http.MethodGet)
	v1.HandleFunc("/queues/{queue}/claims/{id}", s.handleUpdateClaim).Methods(http.MethodPatch)
	v1.HandleFunc("/queues/{queue}/claims/{id}", s.handleDeleteClaim).Methods(http.MethodDelete)

	v1.HandleFunc("/pools", s.handleListPools).Methods(http.MethodGet)
	v1.HandleFunc("/pools/{pool}", s.handlePutPool).Methods(http.MethodPut)
	v1.HandleFunc("/pools/{pool}", s.handleGetPool).Methods(http.MethodGet)
	v1.HandleFunc("/pools/{pool}", s.handleDeletePool).Methods(http.MethodDelete)

	s.Handler = router
	s.server = http.Server{Handler: router}
	return s
}

// Run serves requests until the context is cancelled or Close is called.
func (s *Server) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	ctx, cancel := context.WithCancel(ctx)
	var group errgroup.Group
	group.Go(func() error {
		<-ctx.Done()
		return Error.Wrap(s.server.Shutdown(context.Background()))
	})
	group.Go(func() error {
		defer cancel()
		err := s.server.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return Error.Wrap(err)
	})
	return group.Wait()
}

// Close shuts the server down immediately.
func (s *Server) Close() error {
	return Error.Wrap(s.server.Close())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
