// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sightline-intel/sightline/services/intel/resilience"
)

// Health reports liveness plus a breaker summary. The service stays
// healthy with open breakers; "degraded" tells operators to look.
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	open := 0
	for _, st := range h.breakers.Statuses() {
		if st.State == resilience.StateOpen {
			open++
		}
	}
	if open > 0 {
		status = "degraded"
	}

	body := gin.H{
		"status":        status,
		"open_circuits": open,
	}
	if h.hub != nil {
		body["progress_subscribers"] = h.hub.SubscriberCount()
	}
	c.JSON(http.StatusOK, body)
}

// Progress upgrades the connection to the progress event stream.
func (h *Handler) Progress(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "progress stream disabled"})
		return
	}
	h.hub.ServeWS(c)
}
