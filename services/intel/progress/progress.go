// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package progress streams report-build progress and usage events to
// subscribed clients. Emission is fire-and-forget: a slow or absent
// subscriber never blocks or fails report generation.
package progress

import "time"

// EventType identifies a progress event.
type EventType string

const (
	// EventReportStarted fires when a report build begins.
	EventReportStarted EventType = "report_started"

	// EventFamilyStarted fires when one family's fetch begins.
	EventFamilyStarted EventType = "family_started"

	// EventFamilyResolved fires when one family's section settles,
	// whether from the upstream, the cache, or a failure.
	EventFamilyResolved EventType = "family_resolved"

	// EventReportCompleted fires when the report is assembled.
	EventReportCompleted EventType = "report_completed"

	// EventUsage reports the cost units consumed by one upstream call.
	EventUsage EventType = "usage"
)

// Outcome values for EventFamilyResolved.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeCached  = "cached"
)

// Event is one progress or usage notification.
type Event struct {
	Type      EventType `json:"type"`
	ReportID  string    `json:"report_id"`
	Subject   string    `json:"subject,omitempty"`
	Family    string    `json:"family,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	LatencyMS int64     `json:"latency_ms,omitempty"`
	CostUnits float64   `json:"cost_units,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter receives progress events. Implementations must not block.
type Reporter interface {
	Emit(Event)
}

// NopReporter discards all events.
type NopReporter struct{}

// Emit discards the event.
func (NopReporter) Emit(Event) {}
