// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Package backoff implements the retry schedule used when concurrent
// producers collide on a marker range.
package backoff

import (
	"context"
	"math/rand"
	"time"

	"github.com/zeebo/errs"
)

// ErrInvariant is returned when a schedule is constructed or used with
// parameters that indicate a programming error. It is never translated
// into a client-facing validation failure.
var ErrInvariant = errs.Class("backoff invariant")

// Schedule produces retry delays that ramp linearly with the attempt
// number and carry a uniform random jitter on top.
type Schedule struct {
	// MaxAttempts bounds the number of tries, including the first.
	MaxAttempts int

	// BaseInterval scales the delay; the last attempt waits close to
	// a full BaseInterval (before jitter).
	BaseInterval time.Duration

	// Jitter is the maximum fractional increase applied to each delay.
	// The multiplier is drawn uniformly from [1, 1+Jitter].
	Jitter float64
}

func (s Schedule) check() error {
	switch {
	case s.MaxAttempts <= 0:
		return ErrInvariant.New("max attempts must be positive, got %d", s.MaxAttempts)
	case s.BaseInterval <= 0:
		return ErrInvariant.New("base interval must be positive, got %s", s.BaseInterval)
	case s.Jitter < 0:
		return ErrInvariant.New("jitter must be non-negative, got %f", s.Jitter)
	}
	return nil
}

// Delay returns the wait before retrying after the given zero-based
// attempt. Attempts outside [0, MaxAttempts) are an invariant violation.
func (s Schedule) Delay(attempt int) (time.Duration, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if attempt < 0 || attempt >= s.MaxAttempts {
		return 0, ErrInvariant.New("attempt %d outside [0, %d)", attempt, s.MaxAttempts)
	}

	jitter := 1 + s.Jitter*rand.Float64()
	delay := float64(attempt) / float64(s.MaxAttempts) * float64(s.BaseInterval) * jitter
	return time.Duration(delay), nil
}

// Run calls fn up to MaxAttempts times, sleeping per the schedule between
// tries. fn reports whether its error is worth retrying; the last error is
// returned once attempts are exhausted or the context is done.
func (s Schedule) Run(ctx context.Context, fn func(ctx context.Context) (retry bool, err error)) error {
	if err := s.check(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay, err := s.Delay(attempt)
			if err != nil {
				return err
			}
			if !sleep(ctx, delay) {
				return errs.Combine(ctx.Err(), lastErr)
			}
		}

		retry, err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
