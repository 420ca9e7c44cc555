// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cache stores normalized upstream payloads keyed by request
// fingerprint. Entries carry a TTL; an expired entry is indistinguishable
// from an absent one.
package cache

import (
	"context"
	"time"

	"github.com/sightline-intel/sightline/services/intel/upstream"
)

// Store is the cache contract shared by the in-memory and Badger backends.
//
// Get returns (payload, true, nil) on a fresh hit and (nil, false, nil) on
// a miss or an expired entry. Backend errors are returned separately so
// callers can treat them as misses without losing the signal.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*upstream.Payload, bool, error)
	Put(ctx context.Context, fingerprint string, payload *upstream.Payload, ttl time.Duration) error

	// Reset drops every entry. Used by the admin surface and tests.
	Reset(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
