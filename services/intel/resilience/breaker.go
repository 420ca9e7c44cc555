// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resilience wraps upstream calls with a per-family circuit
// breaker and bounded retry with exponential backoff.
package resilience

import (
	"sync"
	"time"

	"github.com/sightline-intel/sightline/services/intel/upstream"
)

// State is the breaker state.
type State string

const (
	// StateClosed admits all calls.
	StateClosed State = "closed"

	// StateOpen rejects all calls until the cooldown elapses.
	StateOpen State = "open"

	// StateHalfOpen admits a single trial call.
	StateHalfOpen State = "half_open"
)

// BreakerConfig tunes one circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of transient failures within Window
	// that trips the breaker.
	FailureThreshold int

	// Window is the sliding interval over which failures are counted.
	// Failures older than the window no longer count toward tripping.
	Window time.Duration

	// Cooldown is how long an open breaker rejects calls before admitting
	// a trial.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Window:           60 * time.Second,
		Cooldown:         30 * time.Second,
	}
}

// Status is a point-in-time snapshot of one breaker.
type Status struct {
	State        State     `json:"state"`
	FailureCount int       `json:"failure_count"`
	OpenedAt     time.Time `json:"opened_at,omitempty"`
}

// Breaker is a three-state circuit breaker with sliding-window failure
// counting. Half-open admits exactly one trial at a time; concurrent
// callers during the trial are rejected, not queued. A single trial
// success closes the breaker; a trial failure reopens it and restarts
// the full cooldown.
//
// Thread Safety: all methods are safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	state    State
	failures []time.Time
	openedAt time.Time
	trialing bool

	// onChange, when set, is invoked (outside the lock) after every state
	// transition.
	onChange func(State)

	// now is swappable for tests.
	now func() time.Time
}

// NewBreaker creates a closed breaker. onChange may be nil.
func NewBreaker(cfg BreakerConfig, onChange func(State)) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultBreakerConfig().Window
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &Breaker{
		cfg:      cfg,
		state:    StateClosed,
		onChange: onChange,
		now:      time.Now,
	}
}

// Allow reports whether a call may proceed. When it admits a half-open
// trial it returns a release func that must be called once the trial's
// outcome has been recorded; in all other admitted cases the release func
// is a no-op. Callers must not invoke the release func when Allow returns
// false.
func (b *Breaker) Allow() (bool, func()) {
	b.mu.Lock()

	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return true, func() {}

	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			b.mu.Unlock()
			return false, nil
		}
		// Cooldown elapsed; admit this caller as the trial.
		b.setStateLocked(StateHalfOpen)
		b.trialing = true
		b.mu.Unlock()
		b.notify(StateHalfOpen)
		return true, b.releaseTrial

	case StateHalfOpen:
		if b.trialing {
			b.mu.Unlock()
			return false, nil
		}
		b.trialing = true
		b.mu.Unlock()
		return true, b.releaseTrial
	}

	b.mu.Unlock()
	return false, nil
}

func (b *Breaker) releaseTrial() {
	b.mu.Lock()
	b.trialing = false
	b.mu.Unlock()
}

// RecordSuccess notes a successful call. A success during a half-open
// trial closes the breaker immediately.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	if b.state == StateHalfOpen {
		b.setStateLocked(StateClosed)
		b.failures = nil
		b.mu.Unlock()
		b.notify(StateClosed)
		return
	}
	b.mu.Unlock()
}

// RecordFailure notes a transient call failure. In the closed state it
// counts toward the windowed threshold; during a half-open trial it
// reopens the breaker and restarts the full cooldown. Non-transient
// failures (auth, parse) should not be recorded here: they do not
// indicate upstream ill health.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	now := b.now()

	switch b.state {
	case StateHalfOpen:
		b.setStateLocked(StateOpen)
		b.openedAt = now
		b.failures = nil
		b.mu.Unlock()
		b.notify(StateOpen)
		return

	case StateClosed:
		b.failures = append(b.failures, now)
		b.pruneLocked(now)
		if len(b.failures) >= b.cfg.FailureThreshold {
			b.setStateLocked(StateOpen)
			b.openedAt = now
			b.failures = nil
			b.mu.Unlock()
			b.notify(StateOpen)
			return
		}
	}
	b.mu.Unlock()
}

// pruneLocked drops failures that have aged out of the window. Caller
// holds the lock.
func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	kept := b.failures[:0]
	for _, ts := range b.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.failures = kept
}

// Status returns a snapshot of the breaker.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := Status{State: b.state, FailureCount: len(b.failures)}
	if b.state != StateClosed {
		st.OpenedAt = b.openedAt
	}
	return st
}

// Reset forces the breaker closed and clears its failure history.
func (b *Breaker) Reset() {
	b.mu.Lock()
	changed := b.state != StateClosed
	b.setStateLocked(StateClosed)
	b.failures = nil
	b.trialing = false
	b.mu.Unlock()
	if changed {
		b.notify(StateClosed)
	}
}

func (b *Breaker) setStateLocked(s State) {
	b.state = s
}

func (b *Breaker) notify(s State) {
	if b.onChange != nil {
		b.onChange(s)
	}
}

// BreakerSet holds one breaker per upstream family.
type BreakerSet struct {
	breakers map[upstream.Family]*Breaker
}

// NewBreakerSet creates a breaker for every family. onChange, when
// non-nil, receives (family, state) on every transition.
func NewBreakerSet(cfg BreakerConfig, onChange func(upstream.Family, State)) *BreakerSet {
	set := &BreakerSet{breakers: make(map[upstream.Family]*Breaker, 4)}
	for _, family := range upstream.Families() {
		family := family
		var hook func(State)
		if onChange != nil {
			hook = func(s State) { onChange(family, s) }
		}
		set.breakers[family] = NewBreaker(cfg, hook)
	}
	return set
}

// Get returns the breaker for a family.
func (s *BreakerSet) Get(family upstream.Family) *Breaker {
	return s.breakers[family]
}

// Statuses returns a snapshot of every breaker.
func (s *BreakerSet) Statuses() map[upstream.Family]Status {
	out := make(map[upstream.Family]Status, len(s.breakers))
	for family, b := range s.breakers {
		out[family] = b.Status()
	}
	return out
}
