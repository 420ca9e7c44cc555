// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package progress

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcast(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws", hub.ServeWS)
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Emit(Event{
		Type:     EventFamilyResolved,
		ReportID: "r-1",
		Family:   "news",
		Outcome:  OutcomeSuccess,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, EventFamilyResolved, got.Type)
	assert.Equal(t, "r-1", got.ReportID)
	assert.Equal(t, OutcomeSuccess, got.Outcome)
	assert.False(t, got.Timestamp.IsZero(), "hub must stamp events")
}

func TestHubEmitNeverBlocks(t *testing.T) {
	hub := NewHub(nil)
	// No Run loop draining the queue: Emit must still return promptly.
	done := make(chan struct{})
	go func() {
		for i := 0; i < eventBuffer*2; i++ {
			hub.Emit(Event{Type: EventUsage, ReportID: "r-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked with a full queue")
	}
	assert.Greater(t, hub.Dropped(), uint64(0))
}

func TestNopReporter(t *testing.T) {
	var r Reporter = NopReporter{}
	r.Emit(Event{Type: EventReportStarted})
}
