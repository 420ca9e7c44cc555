// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-intel/sightline/pkg/validation"
	"github.com/sightline-intel/sightline/services/intel/cache"
	"github.com/sightline-intel/sightline/services/intel/progress"
	"github.com/sightline-intel/sightline/services/intel/resilience"
	"github.com/sightline-intel/sightline/services/intel/upstream"
)

type fakeClient struct {
	family upstream.Family
	mu     sync.Mutex
	calls  int
	fn     func(call int) upstream.Result
}

func (f *fakeClient) Family() upstream.Family { return f.family }

func (f *fakeClient) Fetch(context.Context, upstream.Request) upstream.Result {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(call)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func okClient(family upstream.Family) *fakeClient {
	return &fakeClient{family: family, fn: func(int) upstream.Result {
		return upstream.Result{
			Payload: &upstream.Payload{Family: family, Summary: "ok"},
			Latency: time.Millisecond,
		}
	}}
}

func failClient(family upstream.Family, kind upstream.FailureKind) *fakeClient {
	return &fakeClient{family: family, fn: func(int) upstream.Result {
		return upstream.Result{
			Failure: &upstream.Failure{Kind: kind, Message: "boom", Retryable: kind.Retryable()},
			Latency: time.Millisecond,
		}
	}}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *eventRecorder) Emit(ev progress.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) byType(t progress.EventType) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testTunables() Tunables {
	families := make(map[upstream.Family]FamilySettings, 4)
	for _, f := range upstream.Families() {
		families[f] = FamilySettings{
			TTL:       time.Minute,
			Timeout:   2 * time.Second,
			CostUnits: 1,
		}
	}
	return Tunables{
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			BackoffFactor:  2.0,
			JitterFactor:   0.1,
		},
		Families: families,
	}
}

func allOKClients() map[upstream.Family]upstream.Client {
	clients := make(map[upstream.Family]upstream.Client, 4)
	for _, f := range upstream.Families() {
		clients[f] = okClient(f)
	}
	return clients
}

func newTestBuilder(clients map[upstream.Family]upstream.Client, reporter progress.Reporter) *Builder {
	return NewBuilder(BuilderOptions{
		Clients:  clients,
		Store:    cache.NewMemoryStore(0),
		Breakers: resilience.NewBreakerSet(resilience.DefaultBreakerConfig(), nil),
		Tunables: testTunables,
		Reporter: reporter,
	})
}

func TestBuildReportComplete(t *testing.T) {
	rec := &eventRecorder{}
	b := newTestBuilder(allOKClients(), rec)

	rep, err := b.BuildReport(context.Background(), "Acme Corp", nil)
	require.NoError(t, err)

	assert.True(t, rep.Complete)
	assert.Equal(t, "Acme Corp", rep.Subject)
	assert.NotEmpty(t, rep.ID)
	require.Len(t, rep.Sections, 4)
	for _, f := range upstream.Families() {
		section := rep.Sections[f]
		assert.True(t, section.Available, "family %s", f)
		require.NotNil(t, section.Payload)
	}

	assert.Len(t, rec.byType(progress.EventReportStarted), 1)
	assert.Len(t, rec.byType(progress.EventFamilyResolved), 4)
	assert.Len(t, rec.byType(progress.EventUsage), 4)
	assert.Len(t, rec.byType(progress.EventReportCompleted), 1)
}

func TestBuildReportPartialFailure(t *testing.T) {
	clients := allOKClients()
	clients[upstream.FamilySearch] = failClient(upstream.FamilySearch, upstream.KindAuth)

	b := newTestBuilder(clients, nil)
	rep, err := b.BuildReport(context.Background(), "acme", nil)
	require.NoError(t, err, "a failed family must degrade the report, not error it")

	assert.False(t, rep.Complete)
	assert.False(t, rep.Sections[upstream.FamilySearch].Available)
	assert.Equal(t, "authentication failed", rep.Sections[upstream.FamilySearch].Reason)
	assert.True(t, rep.Sections[upstream.FamilyNews].Available)
	assert.True(t, rep.Sections[upstream.FamilyChat].Available)
}

func TestBuildReportAllFail(t *testing.T) {
	clients := make(map[upstream.Family]upstream.Client, 4)
	for _, f := range upstream.Families() {
		clients[f] = failClient(f, upstream.KindServer)
	}

	b := newTestBuilder(clients, nil)
	rep, err := b.BuildReport(context.Background(), "acme", nil)
	require.NoError(t, err)

	assert.False(t, rep.Complete)
	for _, f := range upstream.Families() {
		assert.False(t, rep.Sections[f].Available)
		assert.Equal(t, "upstream server error", rep.Sections[f].Reason)
	}
}

func TestBuildReportUnconfiguredFamily(t *testing.T) {
	clients := allOKClients()
	delete(clients, upstream.FamilyResearch)

	b := newTestBuilder(clients, nil)
	rep, err := b.BuildReport(context.Background(), "acme", nil)
	require.NoError(t, err)

	assert.False(t, rep.Complete)
	section := rep.Sections[upstream.FamilyResearch]
	assert.False(t, section.Available)
	assert.Equal(t, "not configured", section.Reason)
}

func TestBuildReportRetriesTransientFailure(t *testing.T) {
	flaky := &fakeClient{family: upstream.FamilyNews, fn: func(call int) upstream.Result {
		if call < 3 {
			return upstream.Result{Failure: &upstream.Failure{
				Kind: upstream.KindServer, Message: "boom", Retryable: true,
			}}
		}
		return upstream.Result{Payload: &upstream.Payload{Family: upstream.FamilyNews, Summary: "ok"}}
	}}
	clients := allOKClients()
	clients[upstream.FamilyNews] = flaky

	b := newTestBuilder(clients, nil)
	rep, err := b.BuildReport(context.Background(), "acme", nil)
	require.NoError(t, err)

	assert.True(t, rep.Sections[upstream.FamilyNews].Available)
	assert.Equal(t, 3, flaky.callCount())
}

func TestBuildReportServesCachedSection(t *testing.T) {
	clients := allOKClients()
	counting := clients[upstream.FamilyNews].(*fakeClient)

	rec := &eventRecorder{}
	b := newTestBuilder(clients, rec)

	_, err := b.BuildReport(context.Background(), "Acme Corp", nil)
	require.NoError(t, err)
	require.Equal(t, 1, counting.callCount())

	// Second build within the TTL: news comes from the cache.
	rep, err := b.BuildReport(context.Background(), "acme corp", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, counting.callCount(), "cached section must not hit the upstream")
	assert.True(t, rep.Sections[upstream.FamilyNews].Cached)
	assert.True(t, rep.Sections[upstream.FamilyNews].Available)

	var cached int
	for _, ev := range rec.byType(progress.EventFamilyResolved) {
		if ev.Outcome == progress.OutcomeCached {
			cached++
		}
	}
	assert.Equal(t, 4, cached)
}

func TestBuildReportCircuitOpen(t *testing.T) {
	breakers := resilience.NewBreakerSet(resilience.BreakerConfig{
		FailureThreshold: 1,
		Window:           time.Minute,
		Cooldown:         time.Hour,
	}, nil)
	breakers.Get(upstream.FamilyChat).RecordFailure()

	b := NewBuilder(BuilderOptions{
		Clients:  allOKClients(),
		Store:    cache.NewMemoryStore(0),
		Breakers: breakers,
		Tunables: testTunables,
	})

	rep, err := b.BuildReport(context.Background(), "acme", nil)
	require.NoError(t, err)

	section := rep.Sections[upstream.FamilyChat]
	assert.False(t, section.Available)
	assert.Equal(t, "circuit open", section.Reason)
	assert.True(t, rep.Sections[upstream.FamilyNews].Available)
}

func TestBuildReportInvalidSubject(t *testing.T) {
	b := newTestBuilder(allOKClients(), nil)

	_, err := b.BuildReport(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, validation.ErrEmptySubject)
}

func TestBuildReportConcurrent(t *testing.T) {
	b := newTestBuilder(allOKClients(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep, err := b.BuildReport(context.Background(), "Acme Corp", nil)
			assert.NoError(t, err)
			assert.NotNil(t, rep)
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent report builds deadlocked")
	}
}
