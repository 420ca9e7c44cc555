// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers holds the HTTP handlers for the intel service.
package handlers

import (
	"log/slog"

	"github.com/sightline-intel/sightline/services/intel/cache"
	"github.com/sightline-intel/sightline/services/intel/progress"
	"github.com/sightline-intel/sightline/services/intel/report"
	"github.com/sightline-intel/sightline/services/intel/resilience"
)

// Handler carries the shared dependencies for all HTTP handlers.
type Handler struct {
	builder  *report.Builder
	breakers *resilience.BreakerSet
	store    cache.Store
	hub      *progress.Hub
	log      *slog.Logger
}

// New creates a Handler. hub may be nil when the websocket surface is
// disabled.
func New(builder *report.Builder, breakers *resilience.BreakerSet, store cache.Store, hub *progress.Hub, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		builder:  builder,
		breakers: breakers,
		store:    store,
		hub:      hub,
		log:      log,
	}
}
