// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package lrucache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"

	"github.com/courier-mq/courier/shared/clock"
)

func TestGetCaches(t *testing.T) {
	cache := New[string](Options{Capacity: 4})

	loads := 0
	load := func() (string, error) {
		loads++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		value, err := cache.Get("key", load)
		require.NoError(t, err)
		assert.Equal(t, "value", value)
	}
	assert.Equal(t, 1, loads)
}

func TestGetDoesNotCacheErrors(t *testing.T) {
	cache := New[string](Options{Capacity: 4})

	loads := 0
	_, err := cache.Get("key", func() (string, error) {
		loads++
		return "", errs.New("load failed")
	})
	require.Error(t, err)

	value, err := cache.Get("key", func() (string, error) {
		loads++
		return "second", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "second", value)
	assert.Equal(t, 2, loads)
}

func TestLRUEviction(t *testing.T) {
	cache := New[int](Options{Capacity: 2})

	mustGet := func(key string, v int) {
		_, err := cache.Get(key, func() (int, error) { return v, nil })
		require.NoError(t, err)
	}

	mustGet("a", 1)
	mustGet("b", 2)

	// Touch a so b becomes the eviction candidate.
	_, ok := cache.GetCached("a")
	require.True(t, ok)

	mustGet("c", 3)

	_, ok = cache.GetCached("b")
	assert.False(t, ok)
	_, ok = cache.GetCached("a")
	assert.True(t, ok)
	_, ok = cache.GetCached("c")
	assert.True(t, ok)
}

func TestExpiration(t *testing.T) {
	clk := clock.NewFake(time.Now())
	cache := New[int](Options{Capacity: 4, Expiration: time.Minute, Clock: clk})

	loads := 0
	load := func() (int, error) {
		loads++
		return loads, nil
	}

	value, err := cache.Get("key", load)
	require.NoError(t, err)
	assert.Equal(t, 1, value)

	clk.Advance(30 * time.Second)
	value, err = cache.Get("key", load)
	require.NoError(t, err)
	assert.Equal(t, 1, value)

	clk.Advance(31 * time.Second)
	value, err = cache.Get("key", load)
	require.NoError(t, err)
	assert.Equal(t, 2, value)
}

func TestDelete(t *testing.T) {
	cache := New[int](Options{Capacity: 4})

	_, err := cache.Get("key", func() (int, error) { return 7, nil })
	require.NoError(t, err)

	cache.Delete("key")
	_, ok := cache.GetCached("key")
	assert.False(t, ok)
}

func TestZeroCapacityDisablesCaching(t *testing.T) {
	cache := New[int](Options{Capacity: 0})

	loads := 0
	for i := 0; i < 3; i++ {
		_, err := cache.Get("key", func() (int, error) {
			loads++
			return loads, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, loads)
}

func TestConcurrentSingleFlight(t *testing.T) {
	cache := New[int](Options{Capacity: 4})

	var mu sync.Mutex
	loads := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := cache.Get("key", func() (int, error) {
				mu.Lock()
				loads++
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, value)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, loads)
}
