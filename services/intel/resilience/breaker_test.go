// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-intel/sightline/services/intel/upstream"
)

func testBreaker(cfg BreakerConfig) (*Breaker, *time.Time) {
	b := NewBreaker(cfg, nil)
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	b, _ := testBreaker(BreakerConfig{FailureThreshold: 3, Window: time.Minute, Cooldown: 30 * time.Second})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, StateClosed, b.Status().State)
	assert.Equal(t, 2, b.Status().FailureCount)

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.Status().State)

	allowed, _ := b.Allow()
	assert.False(t, allowed)
}

func TestBreakerWindowExpiry(t *testing.T) {
	b, now := testBreaker(BreakerConfig{FailureThreshold: 3, Window: time.Minute, Cooldown: 30 * time.Second})

	b.RecordFailure()
	b.RecordFailure()

	// The first two failures age out before the third arrives.
	*now = now.Add(2 * time.Minute)
	b.RecordFailure()

	st := b.Status()
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 1, st.FailureCount)
}

func TestBreakerHalfOpenSingleTrial(t *testing.T) {
	b, now := testBreaker(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: 30 * time.Second})

	b.RecordFailure()
	require.Equal(t, StateOpen, b.Status().State)

	// Still cooling down.
	allowed, _ := b.Allow()
	assert.False(t, allowed)

	// Cooldown elapsed: exactly one trial is admitted.
	*now = now.Add(31 * time.Second)
	allowed, release := b.Allow()
	require.True(t, allowed)
	require.NotNil(t, release)
	assert.Equal(t, StateHalfOpen, b.Status().State)

	concurrent, _ := b.Allow()
	assert.False(t, concurrent, "second caller during the trial must be rejected")

	// Trial succeeds: breaker closes on a single success.
	b.RecordSuccess()
	release()
	assert.Equal(t, StateClosed, b.Status().State)

	allowed, _ = b.Allow()
	assert.True(t, allowed)
}

func TestBreakerTrialFailureRestartsCooldown(t *testing.T) {
	b, now := testBreaker(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: 30 * time.Second})

	b.RecordFailure()
	*now = now.Add(31 * time.Second)

	allowed, release := b.Allow()
	require.True(t, allowed)

	b.RecordFailure()
	release()
	assert.Equal(t, StateOpen, b.Status().State)

	// The cooldown restarted from the trial failure, not the first trip.
	*now = now.Add(20 * time.Second)
	allowed, _ = b.Allow()
	assert.False(t, allowed)

	*now = now.Add(11 * time.Second)
	allowed, release = b.Allow()
	assert.True(t, allowed)
	release()
}

func TestBreakerReset(t *testing.T) {
	b, _ := testBreaker(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: time.Hour})

	b.RecordFailure()
	require.Equal(t, StateOpen, b.Status().State)

	b.Reset()
	st := b.Status()
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 0, st.FailureCount)

	allowed, _ := b.Allow()
	assert.True(t, allowed)
}

func TestBreakerStateChangeHook(t *testing.T) {
	var transitions []State
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: time.Nanosecond}, func(s State) {
		transitions = append(transitions, s)
	})

	b.RecordFailure()
	time.Sleep(time.Millisecond)

	allowed, release := b.Allow()
	require.True(t, allowed)
	b.RecordSuccess()
	release()

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreakerSet(t *testing.T) {
	set := NewBreakerSet(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: time.Hour}, nil)

	set.Get(upstream.FamilyNews).RecordFailure()

	statuses := set.Statuses()
	require.Len(t, statuses, 4)
	assert.Equal(t, StateOpen, statuses[upstream.FamilyNews].State)
	assert.Equal(t, StateClosed, statuses[upstream.FamilyChat].State)
}
