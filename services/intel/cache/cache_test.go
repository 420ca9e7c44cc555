// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-intel/sightline/services/intel/upstream"
)

func testPayload(summary string) *upstream.Payload {
	return &upstream.Payload{Family: upstream.FamilyChat, Summary: summary}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	_, ok, err := store.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "fp-1", testPayload("hello"), time.Minute))

	got, ok, err := store.Get(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Summary)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "fp-1", testPayload("stale soon"), time.Minute))

	// Still fresh just before the deadline.
	now = now.Add(59 * time.Second)
	_, ok, err := store.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Expired entries read as absent.
	now = now.Add(2 * time.Second)
	_, ok, err = store.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len(), "expired entry should be swept on read")
}

func TestMemoryStoreEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	require.NoError(t, store.Put(ctx, "a", testPayload("a"), time.Minute))
	require.NoError(t, store.Put(ctx, "b", testPayload("b"), time.Hour))
	require.NoError(t, store.Put(ctx, "c", testPayload("c"), time.Hour))

	assert.Equal(t, 2, store.Len())

	// "a" had the nearest expiry and should be the victim.
	_, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStoreReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, store.Put(ctx, "fp-1", testPayload("x"), time.Minute))
	require.NoError(t, store.Reset(ctx))

	_, ok, err := store.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewBadgerStore("")
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)

	payload := &upstream.Payload{
		Family: upstream.FamilyNews,
		Items:  []upstream.Item{{Title: "Acme expands", URL: "https://news.example/a"}},
	}
	require.NoError(t, store.Put(ctx, "fp-1", payload, time.Minute))

	got, ok, err := store.Get(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Acme expands", got.Items[0].Title)
}

func TestBadgerStoreReset(t *testing.T) {
	ctx := context.Background()
	store, err := NewBadgerStore("")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(ctx, "fp-1", testPayload("x"), time.Minute))
	require.NoError(t, store.Reset(ctx))

	_, ok, err := store.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
