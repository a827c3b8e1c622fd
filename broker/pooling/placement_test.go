// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package pooling_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courier-mq/courier/broker/pooling"
	"github.com/courier-mq/courier/broker/store"
)

func TestChoosePoolWeighted(t *testing.T) {
	pools := []*store.Pool{
		{ID: "light", Weight: 1},
		{ID: "heavy", Weight: 3},
	}
	rnd := rand.New(rand.NewSource(42))

	counts := map[string]int{}
	for i := 0; i < 4000; i++ {
		pool, err := pooling.ChoosePool(pools, rnd)
		require.NoError(t, err)
		counts[pool.ID]++
	}

	// heavy should win roughly three times as often.
	assert.Greater(t, counts["heavy"], counts["light"]*2)
	assert.Greater(t, counts["light"], 500)
}

func TestChoosePoolZeroWeights(t *testing.T) {
	pools := []*store.Pool{
		{ID: "a", Weight: 0},
		{ID: "b", Weight: 0},
	}
	rnd := rand.New(rand.NewSource(42))

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		pool, err := pooling.ChoosePool(pools, rnd)
		require.NoError(t, err)
		counts[pool.ID]++
	}
	assert.Greater(t, counts["a"], 0)
	assert.Greater(t, counts["b"], 0)
}

func TestChoosePoolZeroWeightNeverWinsAgainstPositive(t *testing.T) {
	pools := []*store.Pool{
		{ID: "idle", Weight: 0},
		{ID: "active", Weight: 1},
	}
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 100; i++ {
		pool, err := pooling.ChoosePool(pools, rnd)
		require.NoError(t, err)
		assert.Equal(t, "active", pool.ID)
	}
}

func TestChoosePoolEmpty(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	_, err := pooling.ChoosePool(nil, rnd)
	assert.True(t, store.ErrPoolDoesNotExist.Has(err))
}
