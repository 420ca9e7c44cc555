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

	"github.com/sightline-intel/sightline/services/intel/upstream"
)

// ListCircuits returns the breaker status for every family.
func (h *Handler) ListCircuits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"circuits": h.breakers.Statuses()})
}

// GetCircuit returns one family's breaker status.
func (h *Handler) GetCircuit(c *gin.Context) {
	family, err := upstream.ParseFamily(c.Param("family"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"family": family,
		"status": h.breakers.Get(family).Status(),
	})
}

// ResetCircuit forces one family's breaker closed.
func (h *Handler) ResetCircuit(c *gin.Context) {
	family, err := upstream.ParseFamily(c.Param("family"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.breakers.Get(family).Reset()
	h.log.Info("circuit breaker reset", "family", family)
	c.JSON(http.StatusOK, gin.H{
		"family": family,
		"status": h.breakers.Get(family).Status(),
	})
}

// ResetCache drops every cached payload.
func (h *Handler) ResetCache(c *gin.Context) {
	if err := h.store.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("cache reset")
	c.JSON(http.StatusOK, gin.H{"status": "cache cleared"})
}
