// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes assembles the gin router for the intel service.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/sightline-intel/sightline/services/intel/handlers"
)

// Setup builds the router. serviceName feeds the tracing middleware.
func Setup(h *handlers.Handler, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/reports", h.CreateReport)
		v1.GET("/circuits", h.ListCircuits)
		v1.GET("/circuits/:family", h.GetCircuit)
		v1.POST("/circuits/:family/reset", h.ResetCircuit)
		v1.POST("/cache/reset", h.ResetCache)
		v1.GET("/progress/ws", h.Progress)
	}

	return router
}
