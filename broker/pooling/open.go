// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package pooling

import (
	"net/url"

	"go.uber.org/zap"

	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/broker/store/boltstore"
	"github.com/courier-mq/courier/broker/store/sqlstore"
	"github.com/courier-mq/courier/shared/clock"
)

// OpenStore opens a backend from a store URL, for example
// bolt:///var/lib/courier/data.db or sqlite:///var/lib/courier/data.db.
func OpenStore(log *zap.Logger, storeURL string, clk clock.Clock) (store.DB, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, Error.New("malformed store url %q: %v", storeURL, err)
	}

	path := u.Path
	if u.Opaque != "" {
		path = u.Opaque
	}
	if path == "" {
		return nil, Error.New("store url %q carries no path", storeURL)
	}

	switch u.Scheme {
	case "bolt":
		return boltstore.Open(log, path, boltstore.Options{Clock: clk})
	case "sqlite":
		return sqlstore.Open(log, path, sqlstore.Options{Clock: clk})
	default:
		return nil, Error.New("unsupported store scheme %q", u.Scheme)
	}
}
