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
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// eventBuffer is the hub's inbound queue. Emit drops events when it
	// is full rather than blocking the report builder.
	eventBuffer = 256

	// clientBuffer is the per-client outbound queue. A client that falls
	// this far behind loses events.
	clientBuffer = 64

	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans progress events out to websocket subscribers.
//
// Thread Safety: Emit and ServeWS are safe for concurrent use. Run must
// be called exactly once.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	events  chan Event
	dropped atomic.Uint64
	log     *slog.Logger
}

// NewHub creates a hub. logger may be nil.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		events:  make(chan Event, eventBuffer),
		log:     logger,
	}
}

// Emit queues an event for broadcast. It never blocks; when the queue is
// full the event is dropped and counted.
func (h *Hub) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	select {
	case h.events <- ev:
	default:
		h.dropped.Add(1)
	}
}

// Dropped reports how many events have been dropped since startup.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Run broadcasts queued events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case ev := <-h.events:
			raw, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("encode progress event", "error", err)
				continue
			}
			h.broadcast(raw)
		}
	}
}

func (h *Hub) broadcast(raw []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- raw:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// SubscriberCount reports the number of connected clients.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and subscribes the connection to the
// event stream.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.log.Info("progress subscriber connected", "client_id", cl.id)

	go h.writePump(cl)
	go h.readPump(cl)
}

// readPump discards inbound frames and detects disconnects.
func (h *Hub) readPump(cl *client) {
	defer h.unregister(cl)

	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
	h.log.Info("progress subscriber disconnected", "client_id", cl.id)
}
