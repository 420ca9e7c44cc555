// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package intel wires the upstream adapters, cache, resilience layer,
// report builder, and HTTP surface into one runnable service.
package intel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sightline-intel/sightline/services/intel/cache"
	"github.com/sightline-intel/sightline/services/intel/config"
	"github.com/sightline-intel/sightline/services/intel/handlers"
	"github.com/sightline-intel/sightline/services/intel/observability"
	"github.com/sightline-intel/sightline/services/intel/progress"
	"github.com/sightline-intel/sightline/services/intel/report"
	"github.com/sightline-intel/sightline/services/intel/resilience"
	"github.com/sightline-intel/sightline/services/intel/routes"
	"github.com/sightline-intel/sightline/services/intel/upstream"
)

// ServiceName identifies this service in traces.
const ServiceName = "sightline-intel"

const shutdownGrace = 10 * time.Second

// Service is the assembled intel service.
type Service struct {
	configPath string
	provider   *config.Provider
	store      cache.Store
	hub        *progress.Hub
	router     *gin.Engine
	log        *slog.Logger

	shutdownTracer func(context.Context) error
}

// New loads configuration from configPath and assembles the service.
func New(ctx context.Context, configPath string, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	provider := config.NewProvider(cfg)

	tp, err := observability.InitTracer(ctx, ServiceName, cfg.Server.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	metrics := observability.InitMetrics()

	store, err := newStore(cfg.Cache)
	if err != nil {
		return nil, err
	}

	breakers := resilience.NewBreakerSet(resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Window:           cfg.Breaker.Window.Std(),
		Cooldown:         cfg.Breaker.Cooldown.Std(),
	}, func(family upstream.Family, state resilience.State) {
		metrics.CircuitState.WithLabelValues(string(family)).Set(stateValue(state))
		log.Warn("circuit state changed", "family", family, "state", state)
	})

	clients, err := buildClients(cfg, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	hub := progress.NewHub(log)

	builder := report.NewBuilder(report.BuilderOptions{
		Clients:  clients,
		Store:    store,
		Breakers: breakers,
		Tunables: func() report.Tunables { return tunablesFrom(provider.Get()) },
		Reporter: hub,
		Metrics:  metrics,
		Logger:   log,
	})

	h := handlers.New(builder, breakers, store, hub, log)

	svc := &Service{
		configPath: configPath,
		provider:   provider,
		store:      store,
		hub:        hub,
		router:     routes.Setup(h, ServiceName),
		log:        log,
	}
	if tp != nil {
		svc.shutdownTracer = tp.Shutdown
	}
	return svc, nil
}

// Router exposes the assembled gin engine, mainly for tests.
func (s *Service) Router() *gin.Engine { return s.router }

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	if s.configPath != "" {
		go func() {
			if err := config.Watch(ctx, s.configPath, s.provider, s.log); err != nil {
				s.log.Error("config watcher stopped", "error", err)
			}
		}()
	}

	addr := s.provider.Get().Server.ListenAddr
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("intel service listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.close()
			return err
		}
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown failed", "error", err)
		}
	}

	s.close()
	return nil
}

func (s *Service) close() {
	if err := s.store.Close(); err != nil {
		s.log.Error("cache close failed", "error", err)
	}
	if s.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.shutdownTracer(ctx); err != nil {
			s.log.Error("tracer shutdown failed", "error", err)
		}
	}
}

func newStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "badger":
		return cache.NewBadgerStore(cfg.Path)
	default:
		return cache.NewMemoryStore(cfg.MaxEntries), nil
	}
}

// buildClients constructs an adapter for every credentialed family.
// Families without credentials are skipped and show up in reports as
// "not configured".
func buildClients(cfg *config.Config, log *slog.Logger) (map[upstream.Family]upstream.Client, error) {
	clients := make(map[upstream.Family]upstream.Client, 4)

	for _, family := range upstream.Families() {
		fc := cfg.Families[family]
		if !fc.Enabled() {
			log.Warn("upstream family not configured", "family", family)
			continue
		}

		opts := upstream.Options{
			BaseURL:    fc.BaseURL,
			Credential: fc.APIKey,
			Timeout:    fc.Timeout.Std(),
			RateLimit:  fc.RateLimit,
			RateBurst:  fc.RateBurst,
			MaxResults: fc.MaxResults,
		}

		var (
			client upstream.Client
			err    error
		)
		switch family {
		case upstream.FamilyNews:
			client, err = upstream.NewNewsClient(opts)
		case upstream.FamilySearch:
			client, err = upstream.NewSearchClient(opts)
		case upstream.FamilyChat:
			client, err = upstream.NewChatClient(opts)
		case upstream.FamilyResearch:
			client, err = upstream.NewResearchClient(opts)
		}
		if err != nil {
			return nil, fmt.Errorf("build %s client: %w", family, err)
		}
		clients[family] = client
	}
	return clients, nil
}

func tunablesFrom(cfg *config.Config) report.Tunables {
	families := make(map[upstream.Family]report.FamilySettings, 4)
	for _, family := range upstream.Families() {
		fc := cfg.Families[family]
		families[family] = report.FamilySettings{
			QueryTemplate: fc.QueryTemplate,
			TTL:           fc.TTL.Std(),
			Timeout:       fc.Timeout.Std(),
			CostUnits:     fc.CostUnits,
		}
	}
	return report.Tunables{
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff.Std(),
			MaxBackoff:     cfg.Retry.MaxBackoff.Std(),
			BackoffFactor:  cfg.Retry.BackoffFactor,
			JitterFactor:   cfg.Retry.JitterFactor,
		},
		Families: families,
	}
}

func stateValue(state resilience.State) float64 {
	switch state {
	case resilience.StateOpen:
		return 2
	case resilience.StateHalfOpen:
		return 1
	}
	return 0
}
