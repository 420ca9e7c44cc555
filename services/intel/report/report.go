// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package report assembles competitor impact reports by fanning out to
// the four upstream intelligence families through the cache and
// resilience layers.
package report

import (
	"time"

	"github.com/sightline-intel/sightline/services/intel/upstream"
)

// Section is one family's contribution to a report. Available is false
// when the family could not be resolved; Reason then says why in terms a
// report reader understands.
type Section struct {
	Family    upstream.Family   `json:"family"`
	Available bool              `json:"available"`
	Cached    bool              `json:"cached,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	LatencyMS int64             `json:"latency_ms"`
	Payload   *upstream.Payload `json:"payload,omitempty"`
}

// ImpactReport is the assembled view of one subject across all families.
// Complete is true only when every family section is available; a report
// with Complete false is degraded, never an error.
type ImpactReport struct {
	ID          string                      `json:"id"`
	Subject     string                      `json:"subject"`
	GeneratedAt time.Time                   `json:"generated_at"`
	DurationMS  int64                       `json:"duration_ms"`
	Complete    bool                        `json:"complete"`
	Sections    map[upstream.Family]Section `json:"sections"`
}

// FamilySettings are the per-family tunables the builder consults on
// every request, so a config reload takes effect without a restart.
type FamilySettings struct {
	// QueryTemplate renders the family query from the subject; the
	// literal "{subject}" is replaced. Empty means the subject itself.
	QueryTemplate string

	// TTL is the cache lifetime for this family's payloads.
	TTL time.Duration

	// Timeout bounds the family's whole fetch, retries included.
	Timeout time.Duration

	// CostUnits is the estimated cost of one successful upstream call.
	CostUnits float64
}
