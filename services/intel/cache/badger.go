// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/sightline-intel/sightline/services/intel/upstream"
)

// keyPrefix namespaces report cache entries within the Badger keyspace.
const keyPrefix = "intel:payload:"

// BadgerStore persists cached payloads in BadgerDB. TTL handling is
// delegated to Badger's native entry expiry, so entries vanish without a
// sweeper and survive process restarts.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at path. An empty
// path opens an in-memory database, which tests use.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache at %q: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// Get returns the cached payload when present and fresh. Badger drops
// expired entries itself, so an expired key reads as not found.
func (s *BadgerStore) Get(_ context.Context, fingerprint string) (*upstream.Payload, bool, error) {
	var payload upstream.Payload
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + fingerprint))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &payload)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return &payload, true, nil
}

// Put stores a payload under the fingerprint with Badger-native TTL.
func (s *BadgerStore) Put(_ context.Context, fingerprint string, payload *upstream.Payload, ttl time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+fingerprint), raw)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Reset drops every cached payload.
func (s *BadgerStore) Reset(_ context.Context) error {
	return s.db.DropPrefix([]byte(keyPrefix))
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
