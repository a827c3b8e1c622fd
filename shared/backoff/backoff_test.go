// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package backoff_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"

	"github.com/courier-mq/courier/shared/backoff"
)

func TestScheduleDelayBounds(t *testing.T) {
	schedule := backoff.Schedule{
		MaxAttempts:  10,
		BaseInterval: 100 * time.Millisecond,
		Jitter:       0.5,
	}

	for attempt := 0; attempt < schedule.MaxAttempts; attempt++ {
		delay, err := schedule.Delay(attempt)
		require.NoError(t, err)

		base := time.Duration(float64(attempt) / float64(schedule.MaxAttempts) * float64(schedule.BaseInterval))
		max := time.Duration(float64(base) * (1 + schedule.Jitter))
		assert.GreaterOrEqual(t, delay, base, "attempt %d", attempt)
		assert.LessOrEqual(t, delay, max, "attempt %d", attempt)
	}

	delay, err := schedule.Delay(0)
	require.NoError(t, err)
	assert.Zero(t, delay)
}

func TestScheduleInvariants(t *testing.T) {
	valid := backoff.Schedule{MaxAttempts: 3, BaseInterval: time.Millisecond, Jitter: 0.1}

	for _, schedule := range []backoff.Schedule{
		{MaxAttempts: 0, BaseInterval: time.Millisecond},
		{MaxAttempts: -1, BaseInterval: time.Millisecond},
		{MaxAttempts: 3, BaseInterval: 0},
		{MaxAttempts: 3, BaseInterval: time.Millisecond, Jitter: -0.1},
	} {
		_, err := schedule.Delay(0)
		assert.True(t, backoff.ErrInvariant.Has(err), "schedule %+v", schedule)
	}

	_, err := valid.Delay(-1)
	assert.True(t, backoff.ErrInvariant.Has(err))
	_, err = valid.Delay(valid.MaxAttempts)
	assert.True(t, backoff.ErrInvariant.Has(err))
}

func TestRunRetries(t *testing.T) {
	ctx := context.Background()
	schedule := backoff.Schedule{MaxAttempts: 5, BaseInterval: time.Microsecond, Jitter: 0}

	calls := 0
	err := schedule.Run(ctx, func(ctx context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return true, errs.New("transient")
		}
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunExhausted(t *testing.T) {
	ctx := context.Background()
	schedule := backoff.Schedule{MaxAttempts: 4, BaseInterval: time.Microsecond, Jitter: 0}

	boom := errs.New("still failing")
	calls := 0
	err := schedule.Run(ctx, func(ctx context.Context) (bool, error) {
		calls++
		return true, boom
	})
	require.Error(t, err)
	assert.Equal(t, schedule.MaxAttempts, calls)
}

func TestRunStopsOnFatal(t *testing.T) {
	ctx := context.Background()
	schedule := backoff.Schedule{MaxAttempts: 4, BaseInterval: time.Microsecond, Jitter: 0}

	calls := 0
	err := schedule.Run(ctx, func(ctx context.Context) (bool, error) {
		calls++
		return false, errs.New("fatal")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	schedule := backoff.Schedule{MaxAttempts: 100, BaseInterval: time.Hour, Jitter: 0}

	err := schedule.Run(ctx, func(ctx context.Context) (bool, error) {
		cancel()
		return true, errs.New("transient")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), context.Canceled.Error())
}
