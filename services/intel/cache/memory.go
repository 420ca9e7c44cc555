// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sightline-intel/sightline/services/intel/upstream"
)

// memoryEntry pairs a payload with its expiry instant.
type memoryEntry struct {
	payload   *upstream.Payload
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded map cache with lazy expiry. Expired
// entries are removed on read; there is no background sweeper.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// maxEntries bounds the map size. Zero means unbounded. When full,
	// Put evicts the entry closest to expiry.
	maxEntries int

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryStore creates an in-memory store. maxEntries <= 0 means
// unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached payload when present and fresh.
func (s *MemoryStore) Get(_ context.Context, fingerprint string) (*upstream.Payload, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[fingerprint]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; a Put may have raced in.
		if cur, ok := s.entries[fingerprint]; ok && s.now().After(cur.expiresAt) {
			delete(s.entries, fingerprint)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.payload, true, nil
}

// Put stores a payload under the fingerprint for ttl.
func (s *MemoryStore) Put(_ context.Context, fingerprint string, payload *upstream.Payload, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		if _, exists := s.entries[fingerprint]; !exists {
			s.evictSoonestLocked()
		}
	}
	s.entries[fingerprint] = memoryEntry{
		payload:   payload,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// evictSoonestLocked removes the entry with the nearest expiry. Caller
// holds the write lock.
func (s *MemoryStore) evictSoonestLocked() {
	var victim string
	var soonest time.Time
	for fp, entry := range s.entries {
		if victim == "" || entry.expiresAt.Before(soonest) {
			victim = fp
			soonest = entry.expiresAt
		}
	}
	if victim != "" {
		delete(s.entries, victim)
	}
}

// Reset drops all entries.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error { return nil }

// Len reports the current entry count, including not-yet-swept expired
// entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
