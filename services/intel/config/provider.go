// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import "sync/atomic"

// Provider hands out the current configuration snapshot. Readers get a
// consistent *Config; a reload swaps the pointer atomically.
type Provider struct {
	current atomic.Pointer[Config]
}

// NewProvider creates a provider seeded with cfg.
func NewProvider(cfg *Config) *Provider {
	p := &Provider{}
	p.current.Store(cfg)
	return p
}

// Get returns the current snapshot. Callers must not mutate it.
func (p *Provider) Get() *Config {
	return p.current.Load()
}

// Swap installs a new snapshot.
func (p *Provider) Swap(cfg *Config) {
	p.current.Store(cfg)
}
