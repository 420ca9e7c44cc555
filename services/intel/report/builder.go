// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sightline-intel/sightline/pkg/validation"
	"github.com/sightline-intel/sightline/services/intel/cache"
	"github.com/sightline-intel/sightline/services/intel/observability"
	"github.com/sightline-intel/sightline/services/intel/progress"
	"github.com/sightline-intel/sightline/services/intel/resilience"
	"github.com/sightline-intel/sightline/services/intel/upstream"
)

// outerMargin pads the report deadline past the slowest family budget so
// a family that uses its full budget still lands in the report.
const outerMargin = 2 * time.Second

// Tunables are the hot-reloadable knobs the builder reads per request.
type Tunables struct {
	Retry    resilience.RetryConfig
	Families map[upstream.Family]FamilySettings
}

// BuilderOptions wires a Builder.
type BuilderOptions struct {
	// Clients holds one adapter per credentialed family. Families
	// without an adapter resolve as "not configured".
	Clients map[upstream.Family]upstream.Client

	Store    cache.Store
	Breakers *resilience.BreakerSet

	// Tunables returns the current knob snapshot. Called once per
	// report so a config reload applies to the next request.
	Tunables func() Tunables

	Reporter progress.Reporter
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Builder assembles impact reports. One Builder serves all requests; it
// is safe for concurrent use.
type Builder struct {
	clients  map[upstream.Family]upstream.Client
	store    cache.Store
	breakers *resilience.BreakerSet
	tunables func() Tunables
	reporter progress.Reporter
	metrics  *observability.Metrics
	log      *slog.Logger
	group    singleflight.Group
}

// NewBuilder creates a Builder.
func NewBuilder(opts BuilderOptions) *Builder {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = progress.NopReporter{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tunables := opts.Tunables
	if tunables == nil {
		tunables = func() Tunables { return Tunables{} }
	}
	return &Builder{
		clients:  opts.Clients,
		store:    opts.Store,
		breakers: opts.Breakers,
		tunables: tunables,
		reporter: reporter,
		metrics:  opts.Metrics,
		log:      logger,
	}
}

// BuildReport fans out to every family and assembles whatever resolved
// into a report. It returns an error only for an invalid subject; every
// upstream misfortune degrades the report instead.
func (b *Builder) BuildReport(ctx context.Context, subject string, params map[string]any) (*ImpactReport, error) {
	sanitized, err := validation.SanitizeSubject(subject)
	if err != nil {
		return nil, err
	}

	tun := b.tunables()
	start := time.Now()
	id := uuid.NewString()

	b.reporter.Emit(progress.Event{
		Type:     progress.EventReportStarted,
		ReportID: id,
		Subject:  sanitized,
	})

	ctx, cancel := context.WithTimeout(ctx, b.outerBudget(tun))
	defer cancel()

	var mu sync.Mutex
	sections := make(map[upstream.Family]Section, 4)

	g, gctx := errgroup.WithContext(ctx)
	for _, family := range upstream.Families() {
		family := family

		client, ok := b.clients[family]
		if !ok {
			mu.Lock()
			sections[family] = Section{Family: family, Reason: "not configured"}
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			section := b.resolveFamily(gctx, tun, id, sanitized, family, client, params)
			mu.Lock()
			sections[family] = section
			mu.Unlock()
			// Never propagate: a failed family must not cancel its
			// siblings.
			return nil
		})
	}
	_ = g.Wait()

	complete := true
	for _, family := range upstream.Families() {
		if !sections[family].Available {
			complete = false
			break
		}
	}

	rep := &ImpactReport{
		ID:          id,
		Subject:     sanitized,
		GeneratedAt: time.Now().UTC(),
		DurationMS:  time.Since(start).Milliseconds(),
		Complete:    complete,
		Sections:    sections,
	}

	if b.metrics != nil {
		b.metrics.ReportsTotal.WithLabelValues(boolLabel(complete)).Inc()
		b.metrics.ReportDurationSeconds.Observe(time.Since(start).Seconds())
	}
	b.reporter.Emit(progress.Event{
		Type:      progress.EventReportCompleted,
		ReportID:  id,
		Subject:   sanitized,
		LatencyMS: rep.DurationMS,
	})
	b.log.Info("report assembled",
		"report_id", id,
		"subject", sanitized,
		"complete", complete,
		"duration_ms", rep.DurationMS,
	)
	return rep, nil
}

// outerBudget derives the report deadline from the slowest configured
// family budget.
func (b *Builder) outerBudget(tun Tunables) time.Duration {
	budget := time.Duration(0)
	for family := range b.clients {
		if t := tun.Families[family].Timeout; t > budget {
			budget = t
		}
	}
	if budget == 0 {
		budget = 30 * time.Second
	}
	return budget + outerMargin
}

type flightOutcome struct {
	res upstream.Result
	err error
}

func (b *Builder) resolveFamily(ctx context.Context, tun Tunables, reportID, subject string, family upstream.Family, client upstream.Client, params map[string]any) Section {
	settings := tun.Families[family]
	req := upstream.Request{
		Subject: subject,
		Query:   renderQuery(settings.QueryTemplate, subject),
		Params:  params,
	}

	b.reporter.Emit(progress.Event{
		Type:     progress.EventFamilyStarted,
		ReportID: reportID,
		Subject:  subject,
		Family:   string(family),
	})

	fp, err := upstream.Fingerprint(family, subject, params)
	if err != nil {
		// Unfingerprintable params: skip the cache, never the fetch.
		b.log.Warn("fingerprint failed, bypassing cache", "family", family, "error", err)
		fp = ""
	}

	if fp != "" && b.store != nil {
		if payload, hit, err := b.store.Get(ctx, fp); err != nil {
			b.log.Warn("cache read failed", "family", family, "error", err)
		} else if hit {
			b.countCache(family, "hit")
			b.reporter.Emit(progress.Event{
				Type:     progress.EventFamilyResolved,
				ReportID: reportID,
				Family:   string(family),
				Outcome:  progress.OutcomeCached,
			})
			return Section{Family: family, Available: true, Cached: true, Payload: payload}
		} else {
			b.countCache(family, "miss")
		}
	}

	outcome := b.fetchShared(ctx, tun, family, client, fp, req, settings)
	return b.settleSection(reportID, subject, family, settings, fp, outcome)
}

// fetchShared runs the resilient fetch, coalescing concurrent identical
// requests onto a single upstream call.
func (b *Builder) fetchShared(ctx context.Context, tun Tunables, family upstream.Family, client upstream.Client, fp string, req upstream.Request, settings FamilySettings) flightOutcome {
	fetch := func() (any, error) {
		fctx := ctx
		if settings.Timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, settings.Timeout)
			defer cancel()
		}
		res, err := resilience.Execute(fctx, tun.Retry, b.breakers.Get(family), func(c context.Context) upstream.Result {
			return client.Fetch(c, req)
		})
		return flightOutcome{res: res, err: err}, nil
	}

	if fp == "" {
		v, _ := fetch()
		return v.(flightOutcome)
	}
	v, _, _ := b.group.Do(fp, fetch)
	return v.(flightOutcome)
}

func (b *Builder) settleSection(reportID, subject string, family upstream.Family, settings FamilySettings, fp string, outcome flightOutcome) Section {
	latencyMS := outcome.res.Latency.Milliseconds()

	if outcome.err != nil {
		reason := "circuit open"
		if !errors.Is(outcome.err, resilience.ErrCircuitOpen) {
			reason = outcome.err.Error()
		}
		b.countRequest(family, "rejected")
		b.reporter.Emit(progress.Event{
			Type:     progress.EventFamilyResolved,
			ReportID: reportID,
			Family:   string(family),
			Outcome:  progress.OutcomeFailure,
			Reason:   reason,
		})
		return Section{Family: family, Reason: reason}
	}

	res := outcome.res
	if b.metrics != nil {
		b.metrics.UpstreamLatencySeconds.WithLabelValues(string(family)).Observe(res.Latency.Seconds())
	}

	if !res.OK() {
		reason := "upstream unavailable"
		if res.Failure != nil {
			reason = res.Failure.Reason()
			if b.metrics != nil {
				b.metrics.UpstreamFailuresTotal.WithLabelValues(string(family), string(res.Failure.Kind)).Inc()
			}
		}
		b.countRequest(family, "failure")
		b.reporter.Emit(progress.Event{
			Type:      progress.EventFamilyResolved,
			ReportID:  reportID,
			Family:    string(family),
			Outcome:   progress.OutcomeFailure,
			Reason:    reason,
			LatencyMS: latencyMS,
		})
		return Section{Family: family, Reason: reason, LatencyMS: latencyMS}
	}

	if fp != "" && b.store != nil && settings.TTL > 0 {
		// Write-through; a cache write failure costs a future hit, not
		// this report.
		if err := b.store.Put(context.Background(), fp, res.Payload, settings.TTL); err != nil {
			b.log.Warn("cache write failed", "family", family, "error", err)
		}
	}

	b.countRequest(family, "success")
	if b.metrics != nil && settings.CostUnits > 0 {
		b.metrics.CostUnitsTotal.WithLabelValues(string(family)).Add(settings.CostUnits)
	}
	b.reporter.Emit(progress.Event{
		Type:      progress.EventFamilyResolved,
		ReportID:  reportID,
		Family:    string(family),
		Outcome:   progress.OutcomeSuccess,
		LatencyMS: latencyMS,
	})
	if settings.CostUnits > 0 {
		b.reporter.Emit(progress.Event{
			Type:      progress.EventUsage,
			ReportID:  reportID,
			Subject:   subject,
			Family:    string(family),
			CostUnits: settings.CostUnits,
		})
	}
	return Section{Family: family, Available: true, LatencyMS: latencyMS, Payload: res.Payload}
}

func (b *Builder) countRequest(family upstream.Family, outcome string) {
	if b.metrics != nil {
		b.metrics.UpstreamRequestsTotal.WithLabelValues(string(family), outcome).Inc()
	}
}

func (b *Builder) countCache(family upstream.Family, event string) {
	if b.metrics != nil {
		b.metrics.CacheEventsTotal.WithLabelValues(string(family), event).Inc()
	}
}

func renderQuery(template, subject string) string {
	if template == "" {
		return subject
	}
	return strings.ReplaceAll(template, "{subject}", subject)
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
