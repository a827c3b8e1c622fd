// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package boltstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/courier-mq/courier/broker/store"
	"github.com/courier-mq/courier/broker/store/boltstore"
	"github.com/courier-mq/courier/broker/store/storetest"
	"github.com/courier-mq/courier/shared/clock"
)

func TestStore(t *testing.T) {
	storetest.RunTests(t, func(t *testing.T, clk clock.Clock) store.DB {
		db, err := boltstore.Open(zaptest.NewLogger(t),
			filepath.Join(t.TempDir(), "courier.db"),
			boltstore.Options{Clock: clk})
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return db
	})
}
