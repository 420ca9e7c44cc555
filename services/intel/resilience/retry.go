// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sightline-intel/sightline/services/intel/upstream"
)

// RetryConfig tunes the retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the backoff after each attempt.
	BackoffFactor float64

	// JitterFactor spreads each wait by +/- this fraction to avoid
	// synchronized retries across callers.
	JitterFactor float64
}

// DefaultRetryConfig returns production defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
	}
}

func (c RetryConfig) normalize() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = def.BackoffFactor
	}
	if c.JitterFactor < 0 || c.JitterFactor >= 1 {
		c.JitterFactor = def.JitterFactor
	}
	return c
}

// backoffFor computes the jittered wait before attempt+1. attempt is
// 1-based.
func (c RetryConfig) backoffFor(attempt int) time.Duration {
	backoff := float64(c.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= c.BackoffFactor
		if backoff >= float64(c.MaxBackoff) {
			backoff = float64(c.MaxBackoff)
			break
		}
	}
	jitter := 1 + (rand.Float64()*2-1)*c.JitterFactor
	return time.Duration(backoff * jitter)
}

// Execute runs fn under the breaker with bounded retry.
//
// The breaker is consulted before every attempt, not just the first, so a
// breaker tripped by concurrent callers aborts the remaining retries and
// the last observed failure is returned. Only transient failures are
// retried and only transient failures count toward the breaker. A
// rejection before the first attempt returns ErrCircuitOpen; in every
// other case the outcome travels in the Result and the error is nil.
func Execute(ctx context.Context, cfg RetryConfig, breaker *Breaker, fn func(context.Context) upstream.Result) (upstream.Result, error) {
	cfg = cfg.normalize()

	var last upstream.Result
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		allowed, release := breaker.Allow()
		if !allowed {
			if attempt == 1 {
				return upstream.Result{}, ErrCircuitOpen
			}
			return last, nil
		}

		res := fn(ctx)
		if res.OK() {
			breaker.RecordSuccess()
			release()
			return res, nil
		}

		if res.Failure != nil && res.Failure.Retryable {
			breaker.RecordFailure()
		}
		release()
		last = res

		if res.Failure == nil || !res.Failure.Retryable || attempt == cfg.MaxAttempts {
			return res, nil
		}

		timer := time.NewTimer(cfg.backoffFor(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, nil
		case <-timer.C:
		}
	}
	return last, nil
}
