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
)

// CreateReportRequest is the POST /v1/reports body.
type CreateReportRequest struct {
	Subject string         `json:"subject" binding:"required"`
	Params  map[string]any `json:"params"`
}

// CreateReport builds an impact report for the requested subject. A
// degraded report is still a 200; only an unusable subject is a client
// error.
func (h *Handler) CreateReport(c *gin.Context) {
	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject is required"})
		return
	}

	rep, err := h.builder.BuildReport(c.Request.Context(), req.Subject, req.Params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rep)
}
