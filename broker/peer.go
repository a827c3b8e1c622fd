// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package broker

import (
	"context"
	"errors"
	"net"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/courier-mq/courier/broker/api"
	"github.com/courier-mq/courier/broker/pooling"
	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/shared/clock"
)

var (
	mon = monkit.Package()

	// Error is the default broker error class.
	Error = errs.Class("broker")
)

// Peer is the assembled broker process.
type Peer struct {
	Log    *zap.Logger
	Config Config

	// Store is the opened control store; DB is what the API talks to and
	// equals Store unless pooling wraps it in a router.
	Store store.DB
	DB    store.DB

	Router *pooling.Router

	Listener net.Listener
	API      *api.Server
}

// New opens the store, optionally wraps it in the pooling router, and binds
// the HTTP listener. The peer owns everything it opens.
func New(log *zap.Logger, config Config) (*Peer, error) {
	peer := &Peer{
		Log:    log,
		Config: config,
	}

	{ // storage
		db, err := pooling.OpenStore(log.Named("store"), config.Store, clock.System{})
		if err != nil {
			return nil, errs.Combine(Error.Wrap(err), peer.Close())
		}
		peer.Store = db
		peer.DB = db

		if config.Pooling.Enabled {
			peer.Router = pooling.NewRouter(log.Named("pooling"), db, pooling.Options{
				CacheCapacity:   config.Pooling.CacheCapacity,
				CacheExpiration: config.Pooling.CacheExpiration,
			})
			peer.DB = peer.Router
		}
	}

	{ // api
		listener, err := net.Listen("tcp", config.Address)
		if err != nil {
			return nil, errs.Combine(Error.Wrap(err), peer.Close())
		}
		peer.Listener = listener
		peer.API = api.NewServer(log.Named("api"), listener, peer.DB, config.Limits, clock.System{})
	}

	return peer, nil
}

// Run serves until the context is cancelled.
func (peer *Peer) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		peer.Log.Info("broker listening", zap.String("address", peer.Listener.Addr().String()))
		return peer.API.Run(ctx)
	})
	return group.Wait()
}

// Close releases everything the peer opened, in reverse order.
func (peer *Peer) Close() error {
	var group errs.Group

	if peer.API != nil {
		group.Add(peer.API.Close())
	}
	if peer.Listener != nil {
		if err := peer.Listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			group.Add(err)
		}
	}
	if peer.Router != nil {
		group.Add(peer.Router.Close())
	}
	if peer.Store != nil {
		group.Add(peer.Store.Close())
	}

	return Error.Wrap(group.Err())
}
